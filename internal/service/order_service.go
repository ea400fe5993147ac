package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
	"github.com/mkachanov/marketplace-backend/internal/repository"
)

// Actor представляет инициатора операции: пользователь из JWT,
// администратор или внутренний конвейер платёжных событий.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) IsWebhook() bool {
	return a.Role == models.RoleWebhook
}

type OrderRepository interface {
	CreateFromPayment(ctx context.Context, event *models.PaymentEvent) (*models.Order, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, []models.Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, from, to string) (*models.Order, error)
	CancelWithRefund(ctx context.Context, orderID, actorID uuid.UUID, toStatus string) (*models.Order, error)
}

type OrderHistoryRepository interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error)
}

type SettlementRepository interface {
	SettleOrder(ctx context.Context, orderID, actorID uuid.UUID, split *models.SettlementSplit, acceptDeliveryID *uuid.UUID) (*models.Order, error)
}

// orderTransitions — единственная таблица допустимых переходов статуса.
// Переходы в disputed и из него здесь отсутствуют: они проходят только
// через контур споров.
var orderTransitions = map[string]map[string]struct{}{
	models.OrderStatusPending: {
		models.OrderStatusInProgress: {},
		models.OrderStatusCancelled:  {},
	},
	models.OrderStatusInProgress: {
		models.OrderStatusDelivered: {},
	},
	models.OrderStatusDelivered: {
		models.OrderStatusCompleted:         {},
		models.OrderStatusRevisionRequested: {},
	},
	models.OrderStatusRevisionRequested: {
		models.OrderStatusInProgress: {},
		models.OrderStatusDelivered:  {},
	},
}

// TransitionAllowed сообщает, определён ли переход в таблице автомата.
func TransitionAllowed(from, to string) bool {
	targets, ok := orderTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

type OrderService struct {
	orders   OrderRepository
	history  OrderHistoryRepository
	ledger   SettlementRepository
	notifier Notifier
}

func NewOrderService(orders OrderRepository, history OrderHistoryRepository, ledger SettlementRepository, notifier Notifier) *OrderService {
	return &OrderService{orders: orders, history: history, ledger: ledger, notifier: notifier}
}

// GetOrder возвращает заказ. Видят его только стороны сделки и админ.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// ListMyOrders возвращает заказы пользователя с обеих сторон сделки.
func (s *OrderService) ListMyOrders(ctx context.Context, actor Actor) ([]models.Order, []models.Order, error) {
	return s.orders.ListByUser(ctx, actor.ID)
}

// GetHistory возвращает журнал аудита заказа.
func (s *OrderService) GetHistory(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.OrderHistory, error) {
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.history.ListByOrder(ctx, orderID)
}

// Transition выполняет запрошенный переход статуса, проверяя таблицу
// автомата и права актора на конкретное ребро. Переходы с денежными
// последствиями (завершение, отмена с возвратом) уходят в атомарные
// операции репозитория.
func (s *OrderService) Transition(ctx context.Context, actor Actor, orderID uuid.UUID, target string) (*models.Order, error) {
	if _, ok := models.ValidOrderStatuses[target]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заказа")
	}
	if target == models.OrderStatusDisputed {
		return nil, apperror.New(apperror.ErrCodeConflict, "спор открывается через контур споров, не переходом статуса")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actor.ID) && !actor.IsAdmin() && !actor.IsWebhook() {
		return nil, apperror.ErrForbidden
	}

	if order.Status == models.OrderStatusDisputed {
		return nil, apperror.ErrDisputeBlocked
	}
	if !TransitionAllowed(order.Status, target) {
		return nil, apperror.ErrInvalidTransition
	}

	if err := s.authorizeEdge(actor, order, target); err != nil {
		return nil, err
	}

	updated, err := s.applyTransition(ctx, actor, order, target)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperror.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	s.notifier.OrderStatusChanged(updated)
	return updated, nil
}

// authorizeEdge проверяет право актора на конкретное ребро автомата.
func (s *OrderService) authorizeEdge(actor Actor, order *models.Order, target string) error {
	switch {
	case order.Status == models.OrderStatusPending && target == models.OrderStatusInProgress:
		// Начало работы подтверждает только конвейер платёжных событий.
		if !actor.IsWebhook() {
			return apperror.New(apperror.ErrCodeForbidden, "переход подтверждается платёжным шлюзом")
		}
	case order.Status == models.OrderStatusPending && target == models.OrderStatusCancelled:
		if order.BuyerID != actor.ID && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
	case order.Status == models.OrderStatusInProgress && target == models.OrderStatusDelivered:
		// Для услуг сдача работы идёт через контур ревизий с файлами.
		if order.Kind == models.OrderKindService {
			return apperror.New(apperror.ErrCodeConflict, "для услуги сдача работы оформляется через deliveries")
		}
		if order.SellerID != actor.ID {
			return apperror.ErrForbidden
		}
	case order.Status == models.OrderStatusDelivered && target == models.OrderStatusCompleted:
		if order.Kind == models.OrderKindService {
			return apperror.New(apperror.ErrCodeConflict, "для услуги принятие работы оформляется через deliveries")
		}
		if order.BuyerID != actor.ID && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
	case order.Status == models.OrderStatusDelivered && target == models.OrderStatusRevisionRequested:
		// Цикл доработок определён только для услуг и идёт через deliveries.
		return apperror.New(apperror.ErrCodeConflict, "доработка запрашивается через ответ на сдачу работы")
	case order.Status == models.OrderStatusRevisionRequested && target == models.OrderStatusInProgress:
		if order.SellerID != actor.ID {
			return apperror.ErrForbidden
		}
	case order.Status == models.OrderStatusRevisionRequested && target == models.OrderStatusDelivered:
		return apperror.New(apperror.ErrCodeConflict, "повторная сдача оформляется через deliveries")
	default:
		return apperror.ErrInvalidTransition
	}
	return nil
}

// applyTransition выполняет переход нужной атомарной операцией.
func (s *OrderService) applyTransition(ctx context.Context, actor Actor, order *models.Order, target string) (*models.Order, error) {
	switch target {
	case models.OrderStatusCompleted:
		split := ComputeSplit(order.GrossAmount)
		updated, err := s.ledger.SettleOrder(ctx, order.ID, actor.ID, &split, nil)
		if errors.Is(err, repository.ErrAlreadySettled) {
			// Повтор завершения безвреден: отдаём уже рассчитанный заказ.
			return updated, nil
		}
		if errors.Is(err, repository.ErrSettlementConflict) {
			return nil, apperror.ErrInvalidTransition
		}
		return updated, err
	case models.OrderStatusCancelled:
		return s.orders.CancelWithRefund(ctx, order.ID, actor.ID, models.OrderStatusCancelled)
	default:
		actorID := &actor.ID
		if actor.IsWebhook() {
			actorID = nil
		}
		return s.orders.TransitionStatus(ctx, order.ID, actorID, order.Status, target)
	}
}
