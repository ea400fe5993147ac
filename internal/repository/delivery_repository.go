package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mkachanov/marketplace-backend/internal/models"
)

var (
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrDeliveryConflict = errors.New("delivery already responded")
)

type DeliveryRepository struct {
	db *sqlx.DB
}

func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create фиксирует сдачу работы и переводит заказ в delivered одной
// транзакцией. Номер ревизии считается под блокировкой строки заказа,
// поэтому конкурентные сдачи не получат одинаковый номер.
func (r *DeliveryRepository) Create(ctx context.Context, orderID, actorID uuid.UUID, files []string, message string) (*models.Delivery, error) {
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
	if order.Status != models.OrderStatusInProgress && order.Status != models.OrderStatusRevisionRequested {
		return nil, ErrStatusConflict
	}

	var revisionNumber int
	err = tx.GetContext(ctx, &revisionNumber, `
		SELECT COUNT(*) FROM deliveries WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}

	var delivery models.Delivery
	err = tx.GetContext(ctx, &delivery, `
		INSERT INTO deliveries (order_id, revision_number, files, message)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, orderID, revisionNumber, pq.StringArray(files), message)
	if err != nil {
		return nil, fmt.Errorf("delivery repository: create %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = 'delivered', updated_at = NOW() WHERE id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("delivery repository: mark delivered %w", err)
	}

	err = addHistoryTx(ctx, tx, orderID, &actorID, models.HistoryActionDeliverySubmitted,
		map[string]string{"status": order.Status},
		map[string]interface{}{"status": models.OrderStatusDelivered, "revision_number": revisionNumber})
	if err != nil {
		return nil, err
	}

	return &delivery, tx.Commit()
}

// GetByID возвращает сдачу работы по идентификатору.
func (r *DeliveryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.GetContext(ctx, &delivery, `SELECT * FROM deliveries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// ListByOrder возвращает все сдачи работы по заказу в порядке ревизий.
func (r *DeliveryRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.SelectContext(ctx, &deliveries, `
		SELECT * FROM deliveries WHERE order_id = $1 ORDER BY revision_number ASC
	`, orderID)
	return deliveries, err
}

// GetLatestByOrder возвращает последнюю сдачу работы по заказу.
func (r *DeliveryRepository) GetLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.GetContext(ctx, &delivery, `
		SELECT * FROM deliveries WHERE order_id = $1
		ORDER BY revision_number DESC LIMIT 1
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// CountRevisionRequests возвращает число уже запрошенных доработок по заказу.
func (r *DeliveryRepository) CountRevisionRequests(ctx context.Context, orderID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM deliveries WHERE order_id = $1 AND is_accepted = FALSE
	`, orderID)
	return count, err
}

// RequestRevision отклоняет сдачу работы и возвращает заказ в цикл
// доработки. Блокировка берётся на строку заказа, статусные проверки
// выполняются уже под ней.
func (r *DeliveryRepository) RequestRevision(ctx context.Context, deliveryID, actorID uuid.UUID, feedback string) (*models.Delivery, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var delivery models.Delivery
	err = tx.GetContext(ctx, &delivery, `
		SELECT d.* FROM deliveries d
		JOIN orders o ON o.id = d.order_id
		WHERE d.id = $1
		FOR UPDATE OF o
	`, deliveryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	if !delivery.IsPending() {
		return nil, ErrDeliveryConflict
	}

	var updated models.Delivery
	err = tx.GetContext(ctx, &updated, `
		UPDATE deliveries SET is_accepted = FALSE, feedback = $2, responded_at = NOW()
		WHERE id = $1 RETURNING *
	`, deliveryID, feedback)
	if err != nil {
		return nil, fmt.Errorf("delivery repository: request revision %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = 'revision_requested', updated_at = NOW()
		WHERE id = $1 AND status = 'delivered'
	`, delivery.OrderID)
	if err != nil {
		return nil, fmt.Errorf("delivery repository: reopen order %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrStatusConflict
	}

	err = addHistoryTx(ctx, tx, delivery.OrderID, &actorID, models.HistoryActionRevisionRequested,
		map[string]string{"status": models.OrderStatusDelivered},
		map[string]interface{}{"status": models.OrderStatusRevisionRequested, "revision_number": delivery.RevisionNumber})
	if err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}
