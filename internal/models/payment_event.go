package models

import "github.com/google/uuid"

// PaymentEvent подтверждение списания от платёжного шлюза, доставленное
// подписанным webhook. TransactionID — ключ идемпотентности: шлюз
// гарантирует только at-least-once доставку.
type PaymentEvent struct {
	TransactionID    string     `json:"transaction_id" binding:"required"`
	Kind             string     `json:"kind" binding:"required"`
	BuyerID          uuid.UUID  `json:"buyer_id" binding:"required"`
	SellerID         uuid.UUID  `json:"seller_id" binding:"required"`
	ItemID           *uuid.UUID `json:"item_id,omitempty"`
	ProposalID       *uuid.UUID `json:"proposal_id,omitempty"`
	Title            string     `json:"title"`
	Amount           float64    `json:"amount" binding:"required,gt=0"`
	RevisionsAllowed *int       `json:"revisions_allowed,omitempty"`
}
