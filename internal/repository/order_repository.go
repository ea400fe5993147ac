package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mkachanov/marketplace-backend/internal/models"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateFromPayment идемпотентно превращает подтверждение оплаты в заказ.
// Ключ идемпотентности — gateway_tx_id платёжной транзакции: повторная
// доставка того же события возвращает уже созданный заказ без эффектов.
func (r *OrderRepository) CreateFromPayment(ctx context.Context, event *models.PaymentEvent) (*models.Order, bool, error) {
	// Быстрый путь: событие уже обработано.
	order, err := r.GetByGatewayTx(ctx, event.TransactionID)
	if err == nil {
		return order, false, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return nil, false, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var created models.Order
	err = tx.GetContext(ctx, &created, `
		INSERT INTO orders (buyer_id, seller_id, kind, item_id, title, gross_amount, status, payment_status, revisions_allowed)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', 'paid', $7)
		RETURNING *
	`, event.BuyerID, event.SellerID, event.Kind, event.ItemID, event.Title, event.Amount, event.RevisionsAllowed)
	if err != nil {
		return nil, false, fmt.Errorf("order repository: create from payment %w", err)
	}

	// Платёжная транзакция. Уникальный индекс по gateway_tx_id превращает
	// гонку двух конкурентных доставок в детектируемый конфликт.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, order_id, gateway_tx_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, $3, 'payment', $4, 'completed', 'Оплата заказа через платёжный шлюз', NOW())
		ON CONFLICT (gateway_tx_id) WHERE gateway_tx_id IS NOT NULL DO NOTHING
	`, event.BuyerID, created.ID, event.TransactionID, event.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("order repository: create payment transaction %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Конкурентная доставка успела первой: откатываемся и отдаём её заказ.
		if err := tx.Rollback(); err != nil {
			return nil, false, err
		}
		existing, err := r.GetByGatewayTx(ctx, event.TransactionID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := upsertBalanceTx(ctx, tx, event.BuyerID, 0, 0, event.Amount); err != nil {
		return nil, false, fmt.Errorf("order repository: update buyer spend %w", err)
	}

	// Для проекта фиксируем выигравшее предложение и отклоняем остальные.
	if event.Kind == models.OrderKindProject && event.ProposalID != nil {
		var accepted models.Proposal
		err = tx.GetContext(ctx, &accepted, `
			UPDATE proposals SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
			RETURNING *
		`, event.ProposalID, models.ProposalStatusAccepted, models.ProposalStatusPending)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("order repository: accept proposal %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE proposals SET status = $2, updated_at = NOW()
			WHERE project_id = (SELECT project_id FROM proposals WHERE id = $1)
			  AND id <> $1 AND status = $3
		`, event.ProposalID, models.ProposalStatusRejected, models.ProposalStatusPending)
		if err != nil {
			return nil, false, fmt.Errorf("order repository: reject sibling proposals %w", err)
		}
	}

	if err := addHistoryTx(ctx, tx, created.ID, nil, models.HistoryActionCreated, nil, created); err != nil {
		return nil, false, err
	}

	return &created, true, tx.Commit()
}

// GetByGatewayTx возвращает заказ, порождённый платёжной транзакцией шлюза.
func (r *OrderRepository) GetByGatewayTx(ctx context.Context, gatewayTxID string) (*models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, `
		SELECT o.* FROM orders o
		JOIN transactions t ON t.order_id = o.id
		WHERE t.gateway_tx_id = $1
	`, gatewayTxID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser возвращает заказы пользователя как покупателя и как продавца.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, []models.Order, error) {
	var asBuyer []models.Order
	if err := r.db.SelectContext(ctx, &asBuyer, `
		SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC
	`, userID); err != nil {
		return nil, nil, err
	}

	var asSeller []models.Order
	if err := r.db.SelectContext(ctx, &asSeller, `
		SELECT * FROM orders WHERE seller_id = $1 ORDER BY created_at DESC
	`, userID); err != nil {
		return nil, nil, err
	}

	return asBuyer, asSeller, nil
}

// TransitionStatus переводит заказ из from в to под блокировкой строки.
// Проверка текущего статуса выполняется уже после захвата блокировки:
// устаревшее чтение не может решить исход перехода.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, from, to string) (*models.Order, error) {
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
	if order.Status != from {
		return nil, ErrStatusConflict
	}

	var updated models.Order
	err = tx.GetContext(ctx, &updated, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING *
	`, orderID, to)
	if err != nil {
		return nil, fmt.Errorf("order repository: transition status %w", err)
	}

	err = addHistoryTx(ctx, tx, orderID, actorID, models.HistoryActionStatusChanged,
		map[string]string{"status": from}, map[string]string{"status": to})
	if err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}

// CancelWithRefund отменяет ещё не начатый заказ и возвращает оплату
// покупателю одной атомарной операцией.
func (r *OrderRepository) CancelWithRefund(ctx context.Context, orderID, actorID uuid.UUID, toStatus string) (*models.Order, error) {
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
	if order.Status != models.OrderStatusPending {
		return nil, ErrStatusConflict
	}

	paymentStatus := order.PaymentStatus
	if order.PaymentStatus == models.PaymentStatusPaid {
		if err := upsertBalanceTx(ctx, tx, order.BuyerID, order.GrossAmount, 0, 0); err != nil {
			return nil, fmt.Errorf("order repository: refund buyer %w", err)
		}
		err = insertTransactionTx(ctx, tx, order.BuyerID, &order.ID, nil,
			models.TransactionTypeRefund, order.GrossAmount, "Возврат оплаты за отменённый заказ")
		if err != nil {
			return nil, err
		}
		paymentStatus = models.PaymentStatusRefunded
	}

	var updated models.Order
	err = tx.GetContext(ctx, &updated, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1 RETURNING *
	`, orderID, toStatus, paymentStatus)
	if err != nil {
		return nil, fmt.Errorf("order repository: cancel order %w", err)
	}

	err = addHistoryTx(ctx, tx, orderID, &actorID, models.HistoryActionStatusChanged,
		map[string]string{"status": order.Status}, map[string]string{"status": toStatus})
	if err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}
