package models

import (
	"time"

	"github.com/google/uuid"
)

// UserBalance представляет счёт пользователя в леджере платформы.
// Баланс меняется только через расчёт заказов и обработку выводов —
// прямых сеттеров нет ни у одного другого компонента.
type UserBalance struct {
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Balance       float64   `db:"balance" json:"balance"`
	TotalEarnings float64   `db:"total_earnings" json:"total_earnings"`
	TotalSpent    float64   `db:"total_spent" json:"total_spent"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction представляет запись в append-only журнале движений средств.
// GatewayTxID заполнен только у платёжных транзакций и служит ключом
// идемпотентности при приёме webhook-событий.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	OrderID     *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	GatewayTxID *string    `db:"gateway_tx_id" json:"gateway_tx_id,omitempty"`
	Type        string     `db:"type" json:"type"`
	Amount      float64    `db:"amount" json:"amount"`
	Status      string     `db:"status" json:"status"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Withdrawal представляет заявку пользователя на вывод средств.
// Сумма списывается с доступного баланса при создании заявки и
// возвращается, если вывод завершился неудачей.
type Withdrawal struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	Amount        float64    `db:"amount" json:"amount"`
	Status        string     `db:"status" json:"status"`
	CardLast4     *string    `db:"card_last4" json:"card_last4,omitempty"`
	BankName      *string    `db:"bank_name" json:"bank_name,omitempty"`
	FailureReason *string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt   *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
