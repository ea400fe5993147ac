package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/pkg/apperror"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func paymentEvent() *models.PaymentEvent {
	return &models.PaymentEvent{
		TransactionID: "gw_tx_001",
		Kind:          models.OrderKindProduct,
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		Title:         "Набор кистей",
		Amount:        1000,
	}
}

func TestWebhookService_VerifySignature(t *testing.T) {
	svc := NewWebhookService("webhook-secret", new(mockOrderRepo), NoopNotifier{})
	body := []byte(`{"transaction_id":"gw_tx_001"}`)

	assert.NoError(t, svc.VerifySignature(body, sign("webhook-secret", body)))
	assert.ErrorIs(t, svc.VerifySignature(body, sign("wrong-secret", body)), apperror.ErrInvalidSignature)
	assert.ErrorIs(t, svc.VerifySignature(body, "не подпись"), apperror.ErrInvalidSignature)
}

func TestWebhookService_Ingest(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewWebhookService("webhook-secret", orders, NoopNotifier{})
	ctx := context.Background()

	event := paymentEvent()
	created := &models.Order{
		ID:      uuid.New(),
		BuyerID: event.BuyerID, SellerID: event.SellerID,
		Kind: event.Kind, GrossAmount: event.Amount,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPaid,
	}
	confirmed := *created
	confirmed.Status = models.OrderStatusInProgress

	orders.On("CreateFromPayment", ctx, event).Return(created, true, nil)
	orders.On("TransitionStatus", ctx, created.ID, (*uuid.UUID)(nil),
		models.OrderStatusPending, models.OrderStatusInProgress).Return(&confirmed, nil)

	got, isNew, err := svc.Ingest(ctx, event)
	assert.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, models.OrderStatusInProgress, got.Status)
}

func TestWebhookService_Ingest_Replay(t *testing.T) {
	orders := new(mockOrderRepo)
	svc := NewWebhookService("webhook-secret", orders, NoopNotifier{})
	ctx := context.Background()

	event := paymentEvent()
	existing := &models.Order{
		ID:      uuid.New(),
		BuyerID: event.BuyerID, SellerID: event.SellerID,
		Kind: event.Kind, GrossAmount: event.Amount,
		Status:        models.OrderStatusInProgress,
		PaymentStatus: models.PaymentStatusPaid,
	}

	orders.On("CreateFromPayment", ctx, event).Return(existing, false, nil)

	// Повторная доставка того же события не создаёт второй заказ и не
	// трогает статус.
	got, isNew, err := svc.Ingest(ctx, event)
	assert.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, existing.ID, got.ID)
	orders.AssertNotCalled(t, "TransitionStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_Ingest_Validation(t *testing.T) {
	svc := NewWebhookService("webhook-secret", new(mockOrderRepo), NoopNotifier{})
	ctx := context.Background()

	bad := paymentEvent()
	bad.Kind = "subscription"
	_, _, err := svc.Ingest(ctx, bad)
	assert.True(t, apperror.IsValidation(err))

	same := paymentEvent()
	same.SellerID = same.BuyerID
	_, _, err = svc.Ingest(ctx, same)
	assert.True(t, apperror.IsValidation(err))

	project := paymentEvent()
	project.Kind = models.OrderKindProject
	_, _, err = svc.Ingest(ctx, project)
	assert.True(t, apperror.IsValidation(err))
}
