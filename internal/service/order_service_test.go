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

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreateFromPayment(ctx context.Context, event *models.PaymentEvent) (*models.Order, bool, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Order), args.Bool(1), args.Error(2)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, []models.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Order), args.Get(1).([]models.Order), args.Error(2)
}

func (m *mockOrderRepo) TransitionStatus(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, from, to string) (*models.Order, error) {
	args := m.Called(ctx, orderID, actorID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) CancelWithRefund(ctx context.Context, orderID, actorID uuid.UUID, toStatus string) (*models.Order, error) {
	args := m.Called(ctx, orderID, actorID, toStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

type mockHistoryRepo struct {
	mock.Mock
}

func (m *mockHistoryRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.OrderHistory), args.Error(1)
}

type mockSettlementRepo struct {
	mock.Mock
}

func (m *mockSettlementRepo) SettleOrder(ctx context.Context, orderID, actorID uuid.UUID, split *models.SettlementSplit, acceptDeliveryID *uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, orderID, actorID, split, acceptDeliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func newProductOrder(buyerID, sellerID uuid.UUID, status string) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Kind:          models.OrderKindProduct,
		Title:         "Набор кистей",
		GrossAmount:   1000,
		Status:        status,
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func TestOrderService_GetOrder_Forbidden(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	order := newProductOrder(uuid.New(), uuid.New(), models.OrderStatusInProgress)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.GetOrder(ctx, Actor{ID: uuid.New(), Role: models.RoleUser}, order.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	got, err := svc.GetOrder(ctx, Actor{ID: uuid.New(), Role: models.RoleAdmin}, order.ID)
	assert.NoError(t, err)
	assert.Equal(t, order, got)
}

func TestOrderService_Transition_SellerDelivers(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	sellerID := uuid.New()
	order := newProductOrder(uuid.New(), sellerID, models.OrderStatusInProgress)
	delivered := *order
	delivered.Status = models.OrderStatusDelivered

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("TransitionStatus", ctx, order.ID, &sellerID, models.OrderStatusInProgress, models.OrderStatusDelivered).
		Return(&delivered, nil)

	got, err := svc.Transition(ctx, Actor{ID: sellerID, Role: models.RoleUser}, order.ID, models.OrderStatusDelivered)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
}

func TestOrderService_Transition_BuyerCannotDeliver(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	buyerID := uuid.New()
	order := newProductOrder(buyerID, uuid.New(), models.OrderStatusInProgress)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Transition(ctx, Actor{ID: buyerID, Role: models.RoleUser}, order.ID, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestOrderService_Transition_CompleteSettles(t *testing.T) {
	orders := new(mockOrderRepo)
	ledger := new(mockSettlementRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), ledger, NoopNotifier{})
	ctx := context.Background()

	buyerID := uuid.New()
	order := newProductOrder(buyerID, uuid.New(), models.OrderStatusDelivered)
	completed := *order
	completed.Status = models.OrderStatusCompleted

	expectedSplit := ComputeSplit(1000)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	ledger.On("SettleOrder", ctx, order.ID, buyerID, &expectedSplit, (*uuid.UUID)(nil)).
		Return(&completed, nil)

	got, err := svc.Transition(ctx, Actor{ID: buyerID, Role: models.RoleUser}, order.ID, models.OrderStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	ledger.AssertExpectations(t)
}

func TestOrderService_Transition_CompleteIdempotent(t *testing.T) {
	orders := new(mockOrderRepo)
	ledger := new(mockSettlementRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), ledger, NoopNotifier{})
	ctx := context.Background()

	buyerID := uuid.New()
	order := newProductOrder(buyerID, uuid.New(), models.OrderStatusDelivered)
	settled := *order
	settled.Status = models.OrderStatusCompleted

	expectedSplit := ComputeSplit(1000)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	ledger.On("SettleOrder", ctx, order.ID, buyerID, &expectedSplit, (*uuid.UUID)(nil)).
		Return(&settled, repository.ErrAlreadySettled)

	// Гонка двух подтверждений: проигравший получает уже рассчитанный
	// заказ, а не ошибку и не вторую выплату.
	got, err := svc.Transition(ctx, Actor{ID: buyerID, Role: models.RoleUser}, order.ID, models.OrderStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
}

func TestOrderService_Transition_WebhookOnlyStart(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	sellerID := uuid.New()
	order := newProductOrder(uuid.New(), sellerID, models.OrderStatusPending)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Transition(ctx, Actor{ID: sellerID, Role: models.RoleUser}, order.ID, models.OrderStatusInProgress)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_Transition_InvalidEdge(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	buyerID := uuid.New()
	order := newProductOrder(buyerID, uuid.New(), models.OrderStatusPending)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Transition(ctx, Actor{ID: buyerID, Role: models.RoleUser}, order.ID, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestOrderService_Transition_DisputedBlocked(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	buyerID := uuid.New()
	order := newProductOrder(buyerID, uuid.New(), models.OrderStatusDisputed)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Transition(ctx, Actor{ID: buyerID, Role: models.RoleUser}, order.ID, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, apperror.ErrDisputeBlocked)
}

func TestOrderService_Transition_DisputedTargetRejected(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	_, err := svc.Transition(ctx, Actor{ID: uuid.New(), Role: models.RoleUser}, uuid.New(), models.OrderStatusDisputed)
	assert.True(t, apperror.IsConflict(err))
	orders.AssertNotCalled(t, "GetByID")
}

func TestOrderService_Transition_CancelRefunds(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewOrderService(orders, new(mockHistoryRepo), new(mockSettlementRepo), NoopNotifier{})
	ctx := context.Background()

	buyerID := uuid.New()
	order := newProductOrder(buyerID, uuid.New(), models.OrderStatusPending)
	cancelled := *order
	cancelled.Status = models.OrderStatusCancelled
	cancelled.PaymentStatus = models.PaymentStatusRefunded

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("CancelWithRefund", ctx, order.ID, buyerID, models.OrderStatusCancelled).Return(&cancelled, nil)

	got, err := svc.Transition(ctx, Actor{ID: buyerID, Role: models.RoleUser}, order.ID, models.OrderStatusCancelled)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, got.PaymentStatus)
}

func TestTransitionAllowed(t *testing.T) {
	assert.True(t, TransitionAllowed(models.OrderStatusPending, models.OrderStatusInProgress))
	assert.True(t, TransitionAllowed(models.OrderStatusRevisionRequested, models.OrderStatusDelivered))
	assert.False(t, TransitionAllowed(models.OrderStatusCompleted, models.OrderStatusInProgress))
	assert.False(t, TransitionAllowed(models.OrderStatusDelivered, models.OrderStatusCancelled))
	assert.False(t, TransitionAllowed(models.OrderStatusDisputed, models.OrderStatusCompleted))
}
