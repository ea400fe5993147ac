package router

import (
	"github.com/gin-gonic/gin"

	"github.com/mkachanov/marketplace-backend/internal/config"
	"github.com/mkachanov/marketplace-backend/internal/http/handlers"
	"github.com/mkachanov/marketplace-backend/internal/http/middleware"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
	orderHandler *handlers.OrderHandler,
	deliveryHandler *handlers.DeliveryHandler,
	disputeHandler *handlers.DisputeHandler,
	ledgerHandler *handlers.LedgerHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Приём платёжных событий: аутентификация подписью, не JWT.
	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		webhooks.POST("/payment", webhookHandler.HandlePayment)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		orders := protected.Group("/orders")
		{
			orders.GET("/my", orderHandler.ListMy)
			orders.GET("/:id", middleware.UUIDValidator("id"), orderHandler.Get)
			orders.GET("/:id/history", middleware.UUIDValidator("id"), orderHandler.GetHistory)
			orders.POST("/:id/transition", middleware.UUIDValidator("id"), orderHandler.Transition)
			orders.POST("/:id/deliveries", middleware.UUIDValidator("id"), deliveryHandler.Submit)
			orders.GET("/:id/deliveries", middleware.UUIDValidator("id"), deliveryHandler.List)
			orders.POST("/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.Open)
			orders.GET("/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.ListByOrder)
		}

		deliveries := protected.Group("/deliveries")
		{
			deliveries.POST("/:id/response", middleware.UUIDValidator("id"), deliveryHandler.Respond)
		}

		disputes := protected.Group("/disputes")
		{
			disputes.GET("", disputeHandler.List)
			disputes.GET("/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
			disputes.POST("/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
		}

		ledger := protected.Group("/ledger")
		{
			ledger.GET("/balance", ledgerHandler.GetBalance)
			ledger.GET("/transactions", ledgerHandler.ListTransactions)
		}

		withdrawals := protected.Group("/withdrawals")
		{
			withdrawals.POST("", withdrawalHandler.Create)
			withdrawals.GET("", withdrawalHandler.List)
			withdrawals.POST("/:id/process", middleware.UUIDValidator("id"), withdrawalHandler.Process)
		}
	}

	return r
}
