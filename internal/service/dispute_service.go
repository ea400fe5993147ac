package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/mkachanov/marketplace-backend/internal/logger"
	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
	"github.com/mkachanov/marketplace-backend/internal/repository"
)

type DisputeRepository interface {
	Open(ctx context.Context, orderID, initiatorID uuid.UUID, reason string) (*models.Dispute, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error)
}

type DisputeLedger interface {
	ResolveDispute(ctx context.Context, p repository.ResolveDisputeParams) (*models.Dispute, *models.Order, error)
}

type DisputeService struct {
	orders   OrderRepository
	disputes DisputeRepository
	ledger   DisputeLedger
	notifier Notifier
}

func NewDisputeService(orders OrderRepository, disputes DisputeRepository, ledger DisputeLedger, notifier Notifier) *DisputeService {
	return &DisputeService{orders: orders, disputes: disputes, ledger: ledger, notifier: notifier}
}

// Open открывает спор по заказу. Доступно сторонам сделки на любом
// не-терминальном статусе; заказ замораживается до решения админа.
func (s *DisputeService) Open(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Dispute, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина спора обязательна")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actor.ID) {
		return nil, apperror.ErrForbidden
	}
	if models.IsTerminalStatus(order.Status) {
		return nil, apperror.New(apperror.ErrCodeConflict, "спор по завершённому заказу не открывается")
	}
	if order.Status == models.OrderStatusDisputed {
		return nil, apperror.ErrDisputeAlreadyOpen
	}

	dispute, err := s.disputes.Open(ctx, orderID, actor.ID, reason)
	if errors.Is(err, repository.ErrDisputeAlreadyOpen) {
		return nil, apperror.ErrDisputeAlreadyOpen
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperror.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	s.notifier.DisputeOpened(dispute)
	return dispute, nil
}

// GetDispute возвращает спор сторонам заказа и админу.
func (s *DisputeService) GetDispute(ctx context.Context, actor Actor, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return dispute, nil
	}
	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actor.ID) {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

// ListByOrder возвращает споры по заказу.
func (s *DisputeService) ListByOrder(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.Dispute, error) {
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
	return s.disputes.ListByOrder(ctx, orderID)
}

// List возвращает споры: пользователю — по его заказам, админу — общую
// очередь с открытыми спорами первыми.
func (s *DisputeService) List(ctx context.Context, actor Actor, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if actor.IsAdmin() {
		return s.disputes.ListAll(ctx, limit, offset)
	}
	return s.disputes.ListByUser(ctx, actor.ID)
}

// Resolve разрешает спор решением администратора. Сумма возврата не
// может превышать валовую сумму заказа; докредитование исполнителя
// никогда не превышает его расчётной доли.
func (s *DisputeService) Resolve(ctx context.Context, actor Actor, disputeID uuid.UUID, resolution, favoredParty string, refundAmount float64) (*models.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if strings.TrimSpace(resolution) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "текст решения обязателен")
	}
	switch favoredParty {
	case models.FavoredPartyBuyer, models.FavoredPartySeller, models.FavoredPartySplit:
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимая сторона решения спора")
	}
	if refundAmount < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма возврата не может быть отрицательной")
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "спор уже разрешён")
	}

	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		return nil, err
	}
	if refundAmount > order.GrossAmount {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма возврата превышает сумму заказа")
	}
	if favoredParty == models.FavoredPartyBuyer && refundAmount == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "решение в пользу покупателя требует возврата")
	}

	split := ComputeSplit(order.GrossAmount)
	sellerCredit := sellerCreditFor(favoredParty, split.SellerEarning, refundAmount)

	resolved, updated, err := s.ledger.ResolveDispute(ctx, repository.ResolveDisputeParams{
		DisputeID:    disputeID,
		OrderID:      order.ID,
		ResolvedBy:   actor.ID,
		Resolution:   resolution,
		FavoredParty: favoredParty,
		RefundAmount: refundAmount,
		SellerCredit: sellerCredit,
		Split:        split,
	})
	if errors.Is(err, repository.ErrDisputeNotOpen) {
		return nil, apperror.New(apperror.ErrCodeConflict, "спор уже разрешён")
	}
	if errors.Is(err, repository.ErrAlreadySettled) {
		return nil, apperror.New(apperror.ErrCodeConflict, "заказ уже рассчитан")
	}
	if errors.Is(err, repository.ErrNegativeBalance) {
		logger.MoneyAudit(order.ID.String()).WithError(err).Error("Разрешение спора нарушило бы неотрицательность баланса")
		return nil, apperror.ErrLedgerInconsistency
	}
	if err != nil {
		return nil, err
	}

	s.notifier.DisputeResolved(resolved)
	s.notifier.OrderStatusChanged(updated)
	return resolved, nil
}

// sellerCreditFor считает докредитование исполнителя по решению спора.
// Решение в пользу покупателя оставляет исполнителя без выплаты; в
// остальных случаях возврат покупателю вычитается из расчётной доли
// исполнителя, но не ниже нуля.
func sellerCreditFor(favoredParty string, sellerEarning, refundAmount float64) float64 {
	if favoredParty == models.FavoredPartyBuyer {
		return 0
	}
	credit := sellerEarning - refundAmount
	if credit < 0 {
		return 0
	}
	return round2(credit)
}
