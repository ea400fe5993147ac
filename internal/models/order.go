package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Order описывает одну коммерческую сделку: товар, услугу или проект.
// BuyerID и SellerID неизменяемы после создания. SellerEarning и
// PlatformFee заполняются ровно один раз при расчёте (settled_at).
type Order struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	BuyerID          uuid.UUID  `db:"buyer_id" json:"buyer_id"`
	SellerID         uuid.UUID  `db:"seller_id" json:"seller_id"`
	Kind             string     `db:"kind" json:"kind"`
	ItemID           *uuid.UUID `db:"item_id" json:"item_id,omitempty"`
	Title            string     `db:"title" json:"title"`
	GrossAmount      float64    `db:"gross_amount" json:"gross_amount"`
	SellerEarning    *float64   `db:"seller_earning" json:"seller_earning,omitempty"`
	PlatformFee      *float64   `db:"platform_fee" json:"platform_fee,omitempty"`
	Status           string     `db:"status" json:"status"`
	PaymentStatus    string     `db:"payment_status" json:"payment_status"`
	RevisionsAllowed *int       `db:"revisions_allowed" json:"revisions_allowed,omitempty"`
	SettledAt        *time.Time `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsParty сообщает, является ли пользователь стороной сделки.
func (o *Order) IsParty(userID uuid.UUID) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

// IsSettled сообщает, был ли заказ уже рассчитан.
func (o *Order) IsSettled() bool {
	return o.SettledAt != nil
}

// Delivery описывает одну сдачу работы исполнителем по заказу-услуге.
// RevisionNumber монотонно растёт и выводится подсчётом предыдущих
// записей, а не хранимым счётчиком. IsAccepted — трёхзначное состояние:
// nil (ожидает ответа), true (принято), false (запрошена доработка).
type Delivery struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	OrderID        uuid.UUID      `db:"order_id" json:"order_id"`
	RevisionNumber int            `db:"revision_number" json:"revision_number"`
	Files          pq.StringArray `db:"files" json:"files"`
	Message        string         `db:"message" json:"message"`
	IsAccepted     *bool          `db:"is_accepted" json:"is_accepted,omitempty"`
	Feedback       *string        `db:"feedback" json:"feedback,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	RespondedAt    *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
}

// IsPending сообщает, ожидает ли сдача ответа покупателя.
func (d *Delivery) IsPending() bool {
	return d.IsAccepted == nil
}
