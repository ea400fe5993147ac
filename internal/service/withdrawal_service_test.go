package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
	"github.com/mkachanov/marketplace-backend/internal/repository"
)

type mockWithdrawalRepo struct {
	mock.Mock
}

func (m *mockWithdrawalRepo) Create(ctx context.Context, userID uuid.UUID, amount float64, cardLast4, bankName *string) (*models.Withdrawal, error) {
	args := m.Called(ctx, userID, amount, cardLast4, bankName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) ListPending(ctx context.Context, limit, offset int) ([]models.Withdrawal, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) Process(ctx context.Context, id uuid.UUID, status string, failureReason *string) (*models.Withdrawal, error) {
	args := m.Called(ctx, id, status, failureReason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func TestWithdrawalService_Create(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo, 100)
	ctx := context.Background()
	userID := uuid.New()

	expected := &models.Withdrawal{
		ID:     uuid.New(),
		UserID: userID,
		Amount: 500,
		Status: models.WithdrawalStatusPending,
	}
	repo.On("Create", ctx, userID, 500.0, (*string)(nil), (*string)(nil)).Return(expected, nil)

	got, err := svc.Create(ctx, Actor{ID: userID, Role: models.RoleUser}, 500, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, got.Status)
}

func TestWithdrawalService_Create_BelowMinimum(t *testing.T) {
	svc := NewWithdrawalService(new(mockWithdrawalRepo), 100)
	ctx := context.Background()

	_, err := svc.Create(ctx, Actor{ID: uuid.New(), Role: models.RoleUser}, 50, nil, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestWithdrawalService_Create_InsufficientFunds(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo, 100)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Create", ctx, userID, 500.0, (*string)(nil), (*string)(nil)).
		Return(nil, repository.ErrInsufficientFunds)

	_, err := svc.Create(ctx, Actor{ID: userID, Role: models.RoleUser}, 500, nil, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestWithdrawalService_Process_AdminOnly(t *testing.T) {
	svc := NewWithdrawalService(new(mockWithdrawalRepo), 100)
	ctx := context.Background()

	_, err := svc.Process(ctx, Actor{ID: uuid.New(), Role: models.RoleUser},
		uuid.New(), models.WithdrawalStatusCompleted, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestWithdrawalService_Process_FailedNeedsReason(t *testing.T) {
	svc := NewWithdrawalService(new(mockWithdrawalRepo), 100)
	ctx := context.Background()

	_, err := svc.Process(ctx, Actor{ID: uuid.New(), Role: models.RoleAdmin},
		uuid.New(), models.WithdrawalStatusFailed, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestWithdrawalService_Process_Failed(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo, 100)
	ctx := context.Background()

	id := uuid.New()
	reason := "Карта отклонена банком"
	failed := &models.Withdrawal{
		ID:            id,
		Amount:        500,
		Status:        models.WithdrawalStatusFailed,
		FailureReason: &reason,
	}
	repo.On("Process", ctx, id, models.WithdrawalStatusFailed, &reason).Return(failed, nil)

	got, err := svc.Process(ctx, Actor{ID: uuid.New(), Role: models.RoleAdmin},
		id, models.WithdrawalStatusFailed, &reason)
	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusFailed, got.Status)
}
