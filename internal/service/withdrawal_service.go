package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
	"github.com/mkachanov/marketplace-backend/internal/repository"
)

type WithdrawalRepository interface {
	Create(ctx context.Context, userID uuid.UUID, amount float64, cardLast4, bankName *string) (*models.Withdrawal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error)
	ListPending(ctx context.Context, limit, offset int) ([]models.Withdrawal, error)
	Process(ctx context.Context, id uuid.UUID, status string, failureReason *string) (*models.Withdrawal, error)
}

type WithdrawalService struct {
	repo          WithdrawalRepository
	minWithdrawal float64
}

func NewWithdrawalService(repo WithdrawalRepository, minWithdrawal float64) *WithdrawalService {
	return &WithdrawalService{repo: repo, minWithdrawal: minWithdrawal}
}

// Create создаёт заявку на вывод. Сумма резервируется сразу: баланс
// уменьшается в момент создания заявки, а не при её обработке.
func (s *WithdrawalService) Create(ctx context.Context, actor Actor, amount float64, cardLast4, bankName *string) (*models.Withdrawal, error) {
	if amount < s.minWithdrawal {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("минимальная сумма вывода %.2f", s.minWithdrawal))
	}

	withdrawal, err := s.repo.Create(ctx, actor.ID, amount, cardLast4, bankName)
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return nil, apperror.New(apperror.ErrCodeConflict, "недостаточно средств на балансе")
	}
	return withdrawal, err
}

// List возвращает заявки: пользователю — его собственные, админу —
// очередь pending на обработку.
func (s *WithdrawalService) List(ctx context.Context, actor Actor, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if actor.IsAdmin() {
		return s.repo.ListPending(ctx, limit, offset)
	}
	return s.repo.ListByUser(ctx, actor.ID)
}

// Process завершает заявку решением администратора. Неуспешная
// обработка возвращает зарезервированную сумму на баланс.
func (s *WithdrawalService) Process(ctx context.Context, actor Actor, id uuid.UUID, status string, failureReason *string) (*models.Withdrawal, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if status != models.WithdrawalStatusCompleted && status != models.WithdrawalStatusFailed {
		return nil, apperror.New(apperror.ErrCodeValidation, "статус обработки должен быть completed или failed")
	}
	if status == models.WithdrawalStatusFailed && (failureReason == nil || *failureReason == "") {
		return nil, apperror.New(apperror.ErrCodeValidation, "для отказа требуется причина")
	}

	withdrawal, err := s.repo.Process(ctx, id, status, failureReason)
	if errors.Is(err, repository.ErrWithdrawalNotFound) {
		return nil, apperror.ErrWithdrawalNotFound
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperror.New(apperror.ErrCodeConflict, "заявка уже обработана")
	}
	return withdrawal, err
}
