package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// upsertBalanceTx применяет дельты к счёту пользователя внутри уже
// открытой транзакции. Единственное место, где меняются поля
// user_balances: все вызовы идут из расчёта, возвратов и выводов.
func upsertBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, deltaBalance, deltaEarnings, deltaSpent float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, balance, total_earnings, total_spent)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = user_balances.balance + $2,
			total_earnings = user_balances.total_earnings + $3,
			total_spent = user_balances.total_spent + $4,
			updated_at = NOW()
	`, userID, deltaBalance, deltaEarnings, deltaSpent)
	return err
}

// insertTransactionTx добавляет запись в append-only журнал движений
// средств. Журнал никогда не обновляется и не чистится.
func insertTransactionTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, orderID *uuid.UUID, gatewayTxID *string, txType string, amount float64, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, order_id, gateway_tx_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, $3, $4, $5, 'completed', $6, NOW())
	`, userID, orderID, gatewayTxID, txType, amount, description)
	return err
}

// addHistoryTx пишет запись аудита изменений заказа в текущей транзакции.
func addHistoryTx(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, userID *uuid.UUID, action string, oldValue, newValue interface{}) error {
	oldJSON, _ := json.Marshal(oldValue)
	newJSON, _ := json.Marshal(newValue)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_history (order_id, user_id, action, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, userID, action, oldJSON, newJSON)
	return err
}
