package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
	"github.com/mkachanov/marketplace-backend/internal/repository"
)

type DeliveryRepository interface {
	Create(ctx context.Context, orderID, actorID uuid.UUID, files []string, message string) (*models.Delivery, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Delivery, error)
	GetLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	CountRevisionRequests(ctx context.Context, orderID uuid.UUID) (int, error)
	RequestRevision(ctx context.Context, deliveryID, actorID uuid.UUID, feedback string) (*models.Delivery, error)
}

// DeliveryService реализует цикл сдачи и доработки для заказов-услуг.
type DeliveryService struct {
	orders         OrderRepository
	deliveries     DeliveryRepository
	ledger         SettlementRepository
	notifier       Notifier
	minFeedbackLen int
}

func NewDeliveryService(orders OrderRepository, deliveries DeliveryRepository, ledger SettlementRepository, notifier Notifier, minFeedbackLen int) *DeliveryService {
	return &DeliveryService{
		orders:         orders,
		deliveries:     deliveries,
		ledger:         ledger,
		notifier:       notifier,
		minFeedbackLen: minFeedbackLen,
	}
}

// Submit принимает сдачу работы от исполнителя. Допустима из in_progress
// и из revision_requested; заказ при этом переходит в delivered.
func (s *DeliveryService) Submit(ctx context.Context, actor Actor, orderID uuid.UUID, files []string, message string) (*models.Delivery, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.ID {
		return nil, apperror.ErrForbidden
	}
	if order.Kind != models.OrderKindService {
		return nil, apperror.New(apperror.ErrCodeConflict, "сдача работы с файлами определена только для услуг")
	}
	if order.Status == models.OrderStatusDisputed {
		return nil, apperror.ErrDisputeBlocked
	}
	if order.Status != models.OrderStatusInProgress && order.Status != models.OrderStatusRevisionRequested {
		return nil, apperror.ErrInvalidTransition
	}
	if len(files) == 0 && strings.TrimSpace(message) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "сдача работы должна содержать файлы или сообщение")
	}

	delivery, err := s.deliveries.Create(ctx, orderID, actor.ID, files, message)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperror.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	if updated, err := s.orders.GetByID(ctx, orderID); err == nil {
		s.notifier.OrderStatusChanged(updated)
	}
	return delivery, nil
}

// List возвращает сдачи работы по заказу сторонам сделки и админу.
func (s *DeliveryService) List(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.Delivery, error) {
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
	return s.deliveries.ListByOrder(ctx, orderID)
}

// Respond обрабатывает ответ покупателя на сдачу работы: принятие
// запускает расчёт, отклонение возвращает заказ в цикл доработки.
// Отвечать можно только на последнюю сдачу без ответа.
func (s *DeliveryService) Respond(ctx context.Context, actor Actor, deliveryID uuid.UUID, accept bool, feedback string) (*models.Delivery, error) {
	delivery, err := s.deliveries.GetByID(ctx, deliveryID)
	if errors.Is(err, repository.ErrDeliveryNotFound) {
		return nil, apperror.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, delivery.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.ID {
		return nil, apperror.ErrForbidden
	}
	if order.Status == models.OrderStatusDisputed {
		return nil, apperror.ErrDisputeBlocked
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, apperror.ErrInvalidTransition
	}
	if !delivery.IsPending() {
		return nil, apperror.New(apperror.ErrCodeConflict, "ответ на эту сдачу работы уже дан")
	}

	latest, err := s.deliveries.GetLatestByOrder(ctx, delivery.OrderID)
	if err != nil {
		return nil, err
	}
	if latest.ID != delivery.ID {
		return nil, apperror.New(apperror.ErrCodeConflict, "отвечать можно только на последнюю сдачу работы")
	}

	if accept {
		return s.accept(ctx, actor, order, delivery)
	}
	return s.requestRevision(ctx, actor, order, delivery, feedback)
}

func (s *DeliveryService) accept(ctx context.Context, actor Actor, order *models.Order, delivery *models.Delivery) (*models.Delivery, error) {
	split := ComputeSplit(order.GrossAmount)
	updated, err := s.ledger.SettleOrder(ctx, order.ID, actor.ID, &split, &delivery.ID)
	if errors.Is(err, repository.ErrAlreadySettled) {
		return s.deliveries.GetByID(ctx, delivery.ID)
	}
	if errors.Is(err, repository.ErrSettlementConflict) {
		return nil, apperror.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	s.notifier.OrderStatusChanged(updated)
	return s.deliveries.GetByID(ctx, delivery.ID)
}

func (s *DeliveryService) requestRevision(ctx context.Context, actor Actor, order *models.Order, delivery *models.Delivery, feedback string) (*models.Delivery, error) {
	if utf8.RuneCountInString(strings.TrimSpace(feedback)) < s.minFeedbackLen {
		return nil, apperror.ErrInvalidFeedback
	}

	// Лимит доработок: запрошенные ранее ревизии считаются по журналу
	// отклонённых сдач, исчерпание лимита блокирует очередной запрос.
	if order.RevisionsAllowed != nil {
		used, err := s.deliveries.CountRevisionRequests(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if used >= *order.RevisionsAllowed {
			return nil, apperror.ErrRevisionLimitExceeded
		}
	}

	updated, err := s.deliveries.RequestRevision(ctx, delivery.ID, actor.ID, feedback)
	if errors.Is(err, repository.ErrDeliveryConflict) {
		return nil, apperror.New(apperror.ErrCodeConflict, "ответ на эту сдачу работы уже дан")
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperror.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	if order, err := s.orders.GetByID(ctx, delivery.OrderID); err == nil {
		s.notifier.OrderStatusChanged(order)
	}
	return updated, nil
}
