package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/repository/common"
)

var (
	ErrDisputeNotFound    = errors.New("dispute not found")
	ErrDisputeAlreadyOpen = errors.New("order already has an open dispute")
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Open открывает спор по заказу и замораживает его в статусе disputed.
// Частичный уникальный индекс по (order_id) WHERE status='open' не даёт
// открыть второй спор даже при конкурентных запросах.
func (r *DisputeRepository) Open(ctx context.Context, orderID, initiatorID uuid.UUID, reason string) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) || order.Status == models.OrderStatusDisputed {
		return nil, ErrStatusConflict
	}

	var dispute models.Dispute
	err = tx.GetContext(ctx, &dispute, `
		INSERT INTO disputes (order_id, initiator_id, reason)
		VALUES ($1, $2, $3)
		RETURNING *
	`, orderID, initiatorID, reason)
	if common.IsUniqueViolation(err) {
		return nil, ErrDisputeAlreadyOpen
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: open %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = 'disputed', updated_at = NOW() WHERE id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: freeze order %w", err)
	}

	err = addHistoryTx(ctx, tx, orderID, &initiatorID, models.HistoryActionDisputeOpened,
		map[string]string{"status": order.Status},
		map[string]interface{}{"status": models.OrderStatusDisputed, "dispute_id": dispute.ID})
	if err != nil {
		return nil, err
	}

	return &dispute, tx.Commit()
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// GetOpenByOrderID возвращает открытый спор по заказу, если он есть.
func (r *DisputeRepository) GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.GetContext(ctx, &dispute, `
		SELECT * FROM disputes WHERE order_id = $1 AND status = 'open'
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// ListByOrder возвращает все споры по заказу, открытые и разрешённые.
func (r *DisputeRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE order_id = $1 ORDER BY created_at DESC
	`, orderID)
	return disputes, err
}

// ListByUser возвращает споры по заказам, где пользователь — сторона сделки.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT d.* FROM disputes d
		JOIN orders o ON o.id = d.order_id
		WHERE o.buyer_id = $1 OR o.seller_id = $1
		ORDER BY d.created_at DESC
	`, userID)
	return disputes, err
}

// ListAll возвращает споры для админской очереди, открытые первыми.
func (r *DisputeRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		ORDER BY (status = 'open') DESC, created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return disputes, err
}
