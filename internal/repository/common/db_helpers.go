package common

import (
	"errors"

	"github.com/lib/pq"
)

// Коды ошибок PostgreSQL, на которые опирается денежный контур.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation сообщает, нарушил ли запрос уникальный индекс.
// Так детектируются конкурентные повторы: второй webhook с тем же
// gateway_tx_id, второй открытый спор по заказу, гонка номеров ревизий.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// IsCheckViolation сообщает, нарушил ли запрос CHECK-констрейнт.
// Для user_balances_non_negative это сигнал фатальной ошибки расчёта.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgCheckViolation
}
