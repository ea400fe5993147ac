package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute описывает спор по заказу. На заказ допускается не более одного
// открытого спора; после разрешения запись неизменяема.
type Dispute struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	OrderID      uuid.UUID  `db:"order_id" json:"order_id"`
	InitiatorID  uuid.UUID  `db:"initiator_id" json:"initiator_id"`
	Reason       string     `db:"reason" json:"reason"`
	Status       string     `db:"status" json:"status"`
	Resolution   *string    `db:"resolution" json:"resolution,omitempty"`
	FavoredParty *string    `db:"favored_party" json:"favored_party,omitempty"`
	RefundAmount *float64   `db:"refund_amount" json:"refund_amount,omitempty"`
	ResolvedBy   *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}
