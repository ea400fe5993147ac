package models

import (
	"time"

	"github.com/google/uuid"
)

// Proposal представляет отклик исполнителя на проект. Заказ вида project
// создаётся приёмом платёжного события после выбора предложения;
// выигравшее предложение помечается accepted, остальные — rejected.
type Proposal struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProjectID    uuid.UUID `db:"project_id" json:"project_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Amount       float64   `db:"amount" json:"amount"`
	CoverLetter  string    `db:"cover_letter" json:"cover_letter"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
