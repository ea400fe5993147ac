package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkachanov/marketplace-backend/internal/http/handlers/common"
	"github.com/mkachanov/marketplace-backend/internal/models"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandlePayment POST /webhooks/payment
// Подпись считается по сырому телу запроса, поэтому тело читается до
// JSON-разбора.
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	signature := c.GetHeader("X-Signature")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется заголовок X-Signature"})
		return
	}
	if err := h.webhooks.VerifySignature(body, signature); err != nil {
		c.Error(err)
		return
	}

	var event models.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		common.RespondBadRequest(c, "некорректный JSON платёжного события")
		return
	}
	if event.TransactionID == "" || event.Amount <= 0 {
		common.RespondBadRequest(c, "требуются transaction_id и положительная сумма")
		return
	}

	order, created, err := h.webhooks.Ingest(c.Request.Context(), &event)
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, order)
}
