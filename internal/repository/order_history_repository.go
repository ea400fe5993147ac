package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mkachanov/marketplace-backend/internal/models"
)

type OrderHistoryRepository struct {
	db *sqlx.DB
}

func NewOrderHistoryRepository(db *sqlx.DB) *OrderHistoryRepository {
	return &OrderHistoryRepository{db: db}
}

// ListByOrder возвращает журнал аудита заказа от старых записей к новым.
func (r *OrderHistoryRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error) {
	var history []models.OrderHistory
	err := r.db.SelectContext(ctx, &history, `
		SELECT * FROM order_history WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID)
	return history, err
}
