package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
)

type mockDeliveryRepo struct {
	mock.Mock
}

func (m *mockDeliveryRepo) Create(ctx context.Context, orderID, actorID uuid.UUID, files []string, message string) (*models.Delivery, error) {
	args := m.Called(ctx, orderID, actorID, files, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Delivery, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) GetLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) CountRevisionRequests(ctx context.Context, orderID uuid.UUID) (int, error) {
	args := m.Called(ctx, orderID)
	return args.Int(0), args.Error(1)
}

func (m *mockDeliveryRepo) RequestRevision(ctx context.Context, deliveryID, actorID uuid.UUID, feedback string) (*models.Delivery, error) {
	args := m.Called(ctx, deliveryID, actorID, feedback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Delivery), args.Error(1)
}

func newServiceOrder(buyerID, sellerID uuid.UUID, status string, revisionsAllowed int) *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		SellerID:         sellerID,
		Kind:             models.OrderKindService,
		Title:            "Дизайн логотипа",
		GrossAmount:      1000,
		Status:           status,
		PaymentStatus:    models.PaymentStatusPaid,
		RevisionsAllowed: &revisionsAllowed,
	}
}

func pendingDelivery(orderID uuid.UUID, revisionNumber int) *models.Delivery {
	return &models.Delivery{
		ID:             uuid.New(),
		OrderID:        orderID,
		RevisionNumber: revisionNumber,
		Files:          pq.StringArray{"logo_v1.png"},
		Message:        "Первый вариант",
	}
}

func TestDeliveryService_Submit(t *testing.T) {
	orders := new(mockOrderRepo)
	deliveries := new(mockDeliveryRepo)
	svc := NewDeliveryService(orders, deliveries, new(mockSettlementRepo), NoopNotifier{}, 10)
	ctx := context.Background()

	sellerID := uuid.New()
	order := newServiceOrder(uuid.New(), sellerID, models.OrderStatusInProgress, 2)
	delivery := pendingDelivery(order.ID, 0)

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	deliveries.On("Create", ctx, order.ID, sellerID, []string{"logo_v1.png"}, "Первый вариант").Return(delivery, nil)

	got, err := svc.Submit(ctx, Actor{ID: sellerID, Role: models.RoleUser}, order.ID, []string{"logo_v1.png"}, "Первый вариант")
	assert.NoError(t, err)
	assert.Equal(t, 0, got.RevisionNumber)
}

func TestDeliveryService_Submit_OnlySeller(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewDeliveryService(orders, new(mockDeliveryRepo), new(mockSettlementRepo), NoopNotifier{}, 10)
	ctx := context.Background()

	buyerID := uuid.New()
	order := newServiceOrder(buyerID, uuid.New(), models.OrderStatusInProgress, 2)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Submit(ctx, Actor{ID: buyerID, Role: models.RoleUser}, order.ID, []string{"f.png"}, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestDeliveryService_Submit_WrongStatus(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewDeliveryService(orders, new(mockDeliveryRepo), new(mockSettlementRepo), NoopNotifier{}, 10)
	ctx := context.Background()

	sellerID := uuid.New()
	order := newServiceOrder(uuid.New(), sellerID, models.OrderStatusPending, 2)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Submit(ctx, Actor{ID: sellerID, Role: models.RoleUser}, order.ID, []string{"f.png"}, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestDeliveryService_Respond_AcceptSettles(t *testing.T) {
	orders := new(mockOrderRepo)
	deliveries := new(mockDeliveryRepo)
	ledger := new(mockSettlementRepo)
	svc := NewDeliveryService(orders, deliveries, ledger, NoopNotifier{}, 10)
	ctx := context.Background()

	buyerID := uuid.New()
	order := newServiceOrder(buyerID, uuid.New(), models.OrderStatusDelivered, 2)
	delivery := pendingDelivery(order.ID, 0)
	completed := *order
	completed.Status = models.OrderStatusCompleted

	accepted := *delivery
	acceptedFlag := true
	accepted.IsAccepted = &acceptedFlag

	expectedSplit := ComputeSplit(1000)
	deliveries.On("GetByID", ctx, delivery.ID).Return(delivery, nil).Once()
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	deliveries.On("GetLatestByOrder", ctx, order.ID).Return(delivery, nil)
	ledger.On("SettleOrder", ctx, order.ID, buyerID, &expectedSplit, &delivery.ID).Return(&completed, nil)
	deliveries.On("GetByID", ctx, delivery.ID).Return(&accepted, nil).Once()

	got, err := svc.Respond(ctx, Actor{ID: buyerID, Role: models.RoleUser}, delivery.ID, true, "")
	assert.NoError(t, err)
	assert.NotNil(t, got.IsAccepted)
	assert.True(t, *got.IsAccepted)
	ledger.AssertExpectations(t)
}

func TestDeliveryService_Respond_RevisionFlow(t *testing.T) {
	orders := new(mockOrderRepo)
	deliveries := new(mockDeliveryRepo)
	svc := NewDeliveryService(orders, deliveries, new(mockSettlementRepo), NoopNotifier{}, 10)
	ctx := context.Background()

	buyerID := uuid.New()
	order := newServiceOrder(buyerID, uuid.New(), models.OrderStatusDelivered, 2)
	delivery := pendingDelivery(order.ID, 0)

	rejected := *delivery
	rejectedFlag := false
	feedback := "Логотип слишком тёмный, нужен светлый фон"
	rejected.IsAccepted = &rejectedFlag
	rejected.Feedback = &feedback

	deliveries.On("GetByID", ctx, delivery.ID).Return(delivery, nil)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	deliveries.On("GetLatestByOrder", ctx, order.ID).Return(delivery, nil)
	deliveries.On("CountRevisionRequests", ctx, order.ID).Return(0, nil)
	deliveries.On("RequestRevision", ctx, delivery.ID, buyerID, feedback).Return(&rejected, nil)

	got, err := svc.Respond(ctx, Actor{ID: buyerID, Role: models.RoleUser}, delivery.ID, false, feedback)
	assert.NoError(t, err)
	assert.Equal(t, feedback, *got.Feedback)
}

func TestDeliveryService_Respond_RevisionLimit(t *testing.T) {
	orders := new(mockOrderRepo)
	deliveries := new(mockDeliveryRepo)
	svc := NewDeliveryService(orders, deliveries, new(mockSettlementRepo), NoopNotifier{}, 10)
	ctx := context.Background()

	buyerID := uuid.New()
	order := newServiceOrder(buyerID, uuid.New(), models.OrderStatusDelivered, 2)
	delivery := pendingDelivery(order.ID, 2)

	deliveries.On("GetByID", ctx, delivery.ID).Return(delivery, nil)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	deliveries.On("GetLatestByOrder", ctx, order.ID).Return(delivery, nil)
	deliveries.On("CountRevisionRequests", ctx, order.ID).Return(2, nil)

	// Две доработки уже запрошены, третья блокируется лимитом.
	_, err := svc.Respond(ctx, Actor{ID: buyerID, Role: models.RoleUser}, delivery.ID, false,
		"Всё ещё не подходит, нужен другой шрифт")
	assert.ErrorIs(t, err, apperror.ErrRevisionLimitExceeded)
	deliveries.AssertNotCalled(t, "RequestRevision", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliveryService_Respond_ShortFeedback(t *testing.T) {
	orders := new(mockOrderRepo)
	deliveries := new(mockDeliveryRepo)
	svc := NewDeliveryService(orders, deliveries, new(mockSettlementRepo), NoopNotifier{}, 10)
	ctx := context.Background()

	buyerID := uuid.New()
	order := newServiceOrder(buyerID, uuid.New(), models.OrderStatusDelivered, 2)
	delivery := pendingDelivery(order.ID, 0)

	deliveries.On("GetByID", ctx, delivery.ID).Return(delivery, nil)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	deliveries.On("GetLatestByOrder", ctx, order.ID).Return(delivery, nil)

	_, err := svc.Respond(ctx, Actor{ID: buyerID, Role: models.RoleUser}, delivery.ID, false, "плохо")
	assert.ErrorIs(t, err, apperror.ErrInvalidFeedback)
}

func TestDeliveryService_Respond_OnlyLatest(t *testing.T) {
	orders := new(mockOrderRepo)
	deliveries := new(mockDeliveryRepo)
	svc := NewDeliveryService(orders, deliveries, new(mockSettlementRepo), NoopNotifier{}, 10)
	ctx := context.Background()

	buyerID := uuid.New()
	order := newServiceOrder(buyerID, uuid.New(), models.OrderStatusDelivered, 2)
	old := pendingDelivery(order.ID, 0)
	latest := pendingDelivery(order.ID, 1)

	deliveries.On("GetByID", ctx, old.ID).Return(old, nil)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	deliveries.On("GetLatestByOrder", ctx, order.ID).Return(latest, nil)

	_, err := svc.Respond(ctx, Actor{ID: buyerID, Role: models.RoleUser}, old.ID, true, "")
	assert.True(t, apperror.IsConflict(err))
}
