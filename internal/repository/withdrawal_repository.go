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

var ErrWithdrawalNotFound = errors.New("withdrawal not found")

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create резервирует сумму вывода: баланс уменьшается сразу, под
// блокировкой строки счёта, заявка создаётся в статусе pending.
// Недостаток средств проверяется после захвата блокировки.
func (r *WithdrawalRepository) Create(ctx context.Context, userID uuid.UUID, amount float64, cardLast4, bankName *string) (*models.Withdrawal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance models.UserBalance
	err = tx.GetContext(ctx, &balance, `
		SELECT * FROM user_balances WHERE user_id = $1 FOR UPDATE
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}
	if balance.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	if err := upsertBalanceTx(ctx, tx, userID, -amount, 0, 0); err != nil {
		return nil, fmt.Errorf("withdrawal repository: reserve funds %w", err)
	}

	var withdrawal models.Withdrawal
	err = tx.GetContext(ctx, &withdrawal, `
		INSERT INTO withdrawals (user_id, amount, card_last4, bank_name)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, userID, amount, cardLast4, bankName)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: create %w", err)
	}

	err = insertTransactionTx(ctx, tx, userID, nil, nil,
		models.TransactionTypeWithdrawal, amount, "Вывод средств")
	if err != nil {
		return nil, err
	}

	return &withdrawal, tx.Commit()
}

// GetByID возвращает заявку на вывод по идентификатору.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.GetContext(ctx, &withdrawal, `SELECT * FROM withdrawals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// ListByUser возвращает заявки пользователя на вывод.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	return withdrawals, err
}

// ListPending возвращает очередь заявок для обработки администратором.
func (r *WithdrawalRepository) ListPending(ctx context.Context, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE status = 'pending'
		ORDER BY created_at ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	return withdrawals, err
}

// Process завершает заявку. Неуспешная обработка возвращает сумму на
// баланс и пишет компенсирующую запись в журнал: сам журнал остаётся
// append-only.
func (r *WithdrawalRepository) Process(ctx context.Context, id uuid.UUID, status string, failureReason *string) (*models.Withdrawal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var withdrawal models.Withdrawal
	err = tx.GetContext(ctx, &withdrawal, `
		SELECT * FROM withdrawals WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalStatusPending {
		return nil, ErrStatusConflict
	}

	var updated models.Withdrawal
	err = tx.GetContext(ctx, &updated, `
		UPDATE withdrawals SET status = $2, failure_reason = $3, processed_at = NOW()
		WHERE id = $1 RETURNING *
	`, id, status, failureReason)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: process %w", err)
	}

	if status == models.WithdrawalStatusFailed {
		if err := upsertBalanceTx(ctx, tx, withdrawal.UserID, withdrawal.Amount, 0, 0); err != nil {
			return nil, fmt.Errorf("withdrawal repository: return funds %w", err)
		}
		err = insertTransactionTx(ctx, tx, withdrawal.UserID, nil, nil,
			models.TransactionTypeWithdrawalReturn, withdrawal.Amount, "Возврат средств по неуспешному выводу")
		if err != nil {
			return nil, err
		}
	}

	return &updated, tx.Commit()
}
