package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkachanov/marketplace-backend/internal/config"
	"github.com/mkachanov/marketplace-backend/internal/db"
	httpHandlers "github.com/mkachanov/marketplace-backend/internal/http/handlers"
	httpRouter "github.com/mkachanov/marketplace-backend/internal/http/router"
	"github.com/mkachanov/marketplace-backend/internal/logger"
	"github.com/mkachanov/marketplace-backend/internal/repository"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	var notifier service.Notifier = service.NoopNotifier{}
	if cfg.NotifyBaseURL != "" {
		notifier = service.NewHTTPNotifier(cfg.NotifyBaseURL, cfg.NotifyTimeout)
	}

	// Репозитории.
	orderRepo := repository.NewOrderRepository(dbConn)
	deliveryRepo := repository.NewDeliveryRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)
	historyRepo := repository.NewOrderHistoryRepository(dbConn)

	// Сервисы.
	orderService := service.NewOrderService(orderRepo, historyRepo, ledgerRepo, notifier)
	deliveryService := service.NewDeliveryService(orderRepo, deliveryRepo, ledgerRepo, notifier, cfg.MinFeedbackLen)
	disputeService := service.NewDisputeService(orderRepo, disputeRepo, ledgerRepo, notifier)
	ledgerService := service.NewLedgerService(ledgerRepo)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, cfg.MinWithdrawal)
	webhookService := service.NewWebhookService(cfg.WebhookSecret, orderRepo, notifier)

	// HTTP хэндлеры.
	healthHandler := httpHandlers.NewHealthHandler(dbConn)
	webhookHandler := httpHandlers.NewWebhookHandler(webhookService)
	orderHandler := httpHandlers.NewOrderHandler(orderService)
	deliveryHandler := httpHandlers.NewDeliveryHandler(deliveryService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	ledgerHandler := httpHandlers.NewLedgerHandler(ledgerService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(withdrawalService)

	engine := httpRouter.SetupRouter(cfg, healthHandler, webhookHandler, orderHandler,
		deliveryHandler, disputeHandler, ledgerHandler, withdrawalHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
