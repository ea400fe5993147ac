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
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadySettled     = errors.New("order already settled")
	ErrSettlementConflict = errors.New("order is not in a settleable state")
	ErrDisputeNotOpen     = errors.New("dispute is not open")
	ErrNegativeBalance    = errors.New("settlement would make balance negative")
)

// LedgerRepository — единственная точка записи в леджер. Расчёт заказа,
// разрешение спора и возвраты проходят здесь одной транзакцией БД с
// блокировкой строки заказа.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetBalance возвращает счёт пользователя, создаёт если не существует.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	query := `
		INSERT INTO user_balances (user_id, balance, total_earnings, total_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, balance, total_earnings, total_spent, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("ledger repository: get balance %w", err)
	}
	return &balance, nil
}

// ListTransactions возвращает журнал движений средств пользователя.
func (r *LedgerRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return transactions, err
}

// SettleOrder применяет раскладку к заказу ровно один раз. Под блокировкой
// строки перечитывается актуальное состояние: если заказ уже рассчитан,
// возвращается ErrAlreadySettled и леджер не меняется. При acceptDeliveryID
// в той же транзакции фиксируется принятие сдачи работы.
func (r *LedgerRepository) SettleOrder(ctx context.Context, orderID, actorID uuid.UUID, split *models.SettlementSplit, acceptDeliveryID *uuid.UUID) (*models.Order, error) {
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
	if order.IsSettled() {
		return &order, ErrAlreadySettled
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, ErrSettlementConflict
	}

	if acceptDeliveryID != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE deliveries SET is_accepted = TRUE, responded_at = NOW()
			WHERE id = $1 AND order_id = $2 AND is_accepted IS NULL
		`, acceptDeliveryID, orderID)
		if err != nil {
			return nil, fmt.Errorf("ledger repository: accept delivery %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrSettlementConflict
		}
	}

	var updated models.Order
	err = tx.GetContext(ctx, &updated, `
		UPDATE orders SET
			seller_earning = $2,
			platform_fee = $3,
			status = 'completed',
			settled_at = NOW(),
			completed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 RETURNING *
	`, orderID, split.SellerEarning, split.PlatformTake())
	if err != nil {
		return nil, fmt.Errorf("ledger repository: settle order %w", err)
	}

	if err := upsertBalanceTx(ctx, tx, order.SellerID, split.SellerEarning, split.SellerEarning, 0); err != nil {
		if common.IsCheckViolation(err) {
			return nil, ErrNegativeBalance
		}
		return nil, fmt.Errorf("ledger repository: credit seller %w", err)
	}

	err = insertTransactionTx(ctx, tx, order.SellerID, &order.ID, nil,
		models.TransactionTypePayout, split.SellerEarning, "Выплата за выполненный заказ")
	if err != nil {
		return nil, err
	}

	if err := addHistoryTx(ctx, tx, orderID, &actorID, models.HistoryActionSettled, nil, split); err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}

// ResolveDisputeParams параметры атомарного разрешения спора.
type ResolveDisputeParams struct {
	DisputeID    uuid.UUID
	OrderID      uuid.UUID
	ResolvedBy   uuid.UUID
	Resolution   string
	FavoredParty string
	RefundAmount float64
	SellerCredit float64
	Split        models.SettlementSplit
}

// ResolveDispute закрывает спор и применяет его денежные последствия
// единой транзакцией: пометка resolved, возврат покупателю, докредитование
// исполнителя и финальный статус заказа либо происходят вместе, либо
// не происходят вовсе.
func (r *LedgerRepository) ResolveDispute(ctx context.Context, p ResolveDisputeParams) (*models.Dispute, *models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	// Блокировки берутся в порядке orders → disputes, как и в остальных
	// операциях над заказом.
	var order models.Order
	err = tx.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, p.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if order.IsSettled() {
		return nil, nil, ErrAlreadySettled
	}

	var dispute models.Dispute
	err = tx.GetContext(ctx, &dispute, `
		SELECT * FROM disputes WHERE id = $1 AND status = 'open' FOR UPDATE
	`, p.DisputeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrDisputeNotOpen
	}
	if err != nil {
		return nil, nil, err
	}

	var resolved models.Dispute
	err = tx.GetContext(ctx, &resolved, `
		UPDATE disputes SET
			status = 'resolved',
			resolution = $2,
			favored_party = $3,
			refund_amount = $4,
			resolved_by = $5,
			resolved_at = NOW()
		WHERE id = $1 RETURNING *
	`, p.DisputeID, p.Resolution, p.FavoredParty, p.RefundAmount, p.ResolvedBy)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger repository: resolve dispute %w", err)
	}

	finalStatus := models.OrderStatusCompleted
	paymentStatus := order.PaymentStatus

	if p.RefundAmount > 0 {
		if err := upsertBalanceTx(ctx, tx, order.BuyerID, p.RefundAmount, 0, 0); err != nil {
			return nil, nil, fmt.Errorf("ledger repository: refund buyer %w", err)
		}
		err = insertTransactionTx(ctx, tx, order.BuyerID, &order.ID, nil,
			models.TransactionTypeRefund, p.RefundAmount, "Возврат по решению спора")
		if err != nil {
			return nil, nil, err
		}
		finalStatus = models.OrderStatusRefunded
		paymentStatus = models.PaymentStatusRefunded
	}

	if p.SellerCredit > 0 {
		if err := upsertBalanceTx(ctx, tx, order.SellerID, p.SellerCredit, p.SellerCredit, 0); err != nil {
			return nil, nil, fmt.Errorf("ledger repository: credit seller %w", err)
		}
		err = insertTransactionTx(ctx, tx, order.SellerID, &order.ID, nil,
			models.TransactionTypePayout, p.SellerCredit, "Выплата по решению спора")
		if err != nil {
			return nil, nil, err
		}
	}

	var updated models.Order
	err = tx.GetContext(ctx, &updated, `
		UPDATE orders SET
			seller_earning = $2,
			platform_fee = $3,
			status = $4,
			payment_status = $5,
			settled_at = NOW(),
			completed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 RETURNING *
	`, p.OrderID, p.Split.SellerEarning, p.Split.PlatformTake(), finalStatus, paymentStatus)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger repository: finalize disputed order %w", err)
	}

	err = addHistoryTx(ctx, tx, p.OrderID, &p.ResolvedBy, models.HistoryActionDisputeResolved,
		map[string]string{"status": order.Status},
		map[string]interface{}{
			"status":        finalStatus,
			"favored_party": p.FavoredParty,
			"refund_amount": p.RefundAmount,
			"seller_credit": p.SellerCredit,
		})
	if err != nil {
		return nil, nil, err
	}

	return &resolved, &updated, tx.Commit()
}
