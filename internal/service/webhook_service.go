package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/mkachanov/marketplace-backend/internal/logger"
	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
)

// WebhookService принимает подтверждения оплаты от платёжного шлюза.
// Шлюз доставляет события at-least-once, поэтому приём идемпотентен по
// transaction_id.
type WebhookService struct {
	secret   []byte
	orders   OrderRepository
	notifier Notifier
}

func NewWebhookService(secret string, orders OrderRepository, notifier Notifier) *WebhookService {
	return &WebhookService{secret: []byte(secret), orders: orders, notifier: notifier}
}

// VerifySignature сверяет HMAC-SHA256 подпись сырого тела запроса.
// Сравнение через hmac.Equal, постоянное по времени.
func (s *WebhookService) VerifySignature(body []byte, signature string) error {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperror.ErrInvalidSignature
	}
	return nil
}

// Ingest превращает платёжное событие в заказ. Повторная доставка того
// же transaction_id возвращает уже созданный заказ без побочных
// эффектов. Новый заказ сразу подтверждается в in_progress от имени
// внутреннего актора конвейера.
func (s *WebhookService) Ingest(ctx context.Context, event *models.PaymentEvent) (*models.Order, bool, error) {
	if _, ok := models.ValidOrderKinds[event.Kind]; !ok {
		return nil, false, apperror.New(apperror.ErrCodeValidation, "неизвестный вид заказа")
	}
	if event.BuyerID == event.SellerID {
		return nil, false, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец должны различаться")
	}
	if event.Kind == models.OrderKindProject && event.ProposalID == nil {
		return nil, false, apperror.New(apperror.ErrCodeValidation, "для проекта требуется принятое предложение")
	}

	order, created, err := s.orders.CreateFromPayment(ctx, event)
	if err != nil {
		return nil, false, err
	}
	if !created {
		logger.Log.WithField("gateway_tx_id", event.TransactionID).Info("Повторная доставка платёжного события, заказ уже создан")
		// Если прошлая доставка создала заказ, но не успела подтвердить
		// его, повторная доводит переход до конца.
		if order.Status == models.OrderStatusPending {
			if confirmed, err := s.orders.TransitionStatus(ctx, order.ID, nil,
				models.OrderStatusPending, models.OrderStatusInProgress); err == nil {
				return confirmed, false, nil
			}
		}
		return order, false, nil
	}

	confirmed, err := s.orders.TransitionStatus(ctx, order.ID, nil,
		models.OrderStatusPending, models.OrderStatusInProgress)
	if err != nil {
		// Заказ создан и оплата учтена; подтверждение доделает повторная
		// доставка. Ошибку наружу не отдаём, чтобы шлюз не зациклился на
		// ретраях успешно принятого события.
		logger.MoneyAudit(order.ID.String()).WithError(err).Error("Заказ создан, но не подтверждён в in_progress")
		return order, true, nil
	}

	s.notifier.OrderCreated(confirmed)
	return confirmed, true, nil
}
