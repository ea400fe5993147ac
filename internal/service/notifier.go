package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mkachanov/marketplace-backend/internal/goroutine"
	"github.com/mkachanov/marketplace-backend/internal/logger"
	"github.com/mkachanov/marketplace-backend/internal/models"
)

// Notifier уведомляет внешний сервис нотификаций о событиях заказов.
// Доставка best-effort: движок расчётов не зависит от доступности
// сервиса уведомлений.
type Notifier interface {
	OrderCreated(order *models.Order)
	OrderStatusChanged(order *models.Order)
	DisputeOpened(dispute *models.Dispute)
	DisputeResolved(dispute *models.Dispute)
}

// HTTPNotifier шлёт события POST-запросами в фоне через SafeGo.
type HTTPNotifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPNotifier(baseURL string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (n *HTTPNotifier) OrderCreated(order *models.Order) {
	n.send("order.created", order)
}

func (n *HTTPNotifier) OrderStatusChanged(order *models.Order) {
	n.send("order.status_changed", order)
}

func (n *HTTPNotifier) DisputeOpened(dispute *models.Dispute) {
	n.send("dispute.opened", dispute)
}

func (n *HTTPNotifier) DisputeResolved(dispute *models.Dispute) {
	n.send("dispute.resolved", dispute)
}

func (n *HTTPNotifier) send(event string, payload interface{}) {
	goroutine.SafeGo(func() {
		body, err := json.Marshal(map[string]interface{}{
			"event":   event,
			"payload": payload,
		})
		if err != nil {
			return
		}

		resp, err := n.client.Post(n.baseURL+"/internal/events", "application/json", bytes.NewReader(body))
		if err != nil {
			logger.Log.WithError(err).WithField("event", event).Warn("Не удалось доставить уведомление")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			logger.Log.WithField("event", event).WithField("status", resp.StatusCode).Warn("Сервис уведомлений ответил ошибкой")
		}
	})
}

// NoopNotifier используется в тестах и когда сервис уведомлений не настроен.
type NoopNotifier struct{}

func (NoopNotifier) OrderCreated(*models.Order)       {}
func (NoopNotifier) OrderStatusChanged(*models.Order) {}
func (NoopNotifier) DisputeOpened(*models.Dispute)    {}
func (NoopNotifier) DisputeResolved(*models.Dispute)  {}
