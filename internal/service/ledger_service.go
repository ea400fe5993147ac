package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkachanov/marketplace-backend/internal/models"
)

type LedgerRepository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// LedgerService отдаёт пользователю его счёт и журнал движений средств.
type LedgerService struct {
	repo LedgerRepository
}

func NewLedgerService(repo LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

// GetBalance возвращает баланс пользователя.
func (s *LedgerService) GetBalance(ctx context.Context, actor Actor) (*models.UserBalance, error) {
	return s.repo.GetBalance(ctx, actor.ID)
}

// ListTransactions возвращает историю транзакций пользователя.
func (s *LedgerService) ListTransactions(ctx context.Context, actor Actor, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, actor.ID, limit, offset)
}
