// Package billing собирает HTTP-процесс биллинга: хранилище, Redis,
// RabbitMQ, клиент платёжного провайдера, сервисы и маршруты.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/homebiyori/billing-service/internal/cache"
	"github.com/homebiyori/billing-service/internal/config"
	libmq "github.com/homebiyori/billing-service/internal/lib/rabbitmq"
	"github.com/homebiyori/billing-service/internal/migrations"
	"github.com/homebiyori/billing-service/internal/paymentprovider"
	"github.com/homebiyori/billing-service/internal/rabbitmq"
	chatservice "github.com/homebiyori/billing-service/internal/services/chat"
	notificationservice "github.com/homebiyori/billing-service/internal/services/notification"
	retentionservice "github.com/homebiyori/billing-service/internal/services/retention"
	subscriptionservice "github.com/homebiyori/billing-service/internal/services/subscription"
	webhookservice "github.com/homebiyori/billing-service/internal/services/webhook"
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// App HTTP-процесс биллинга.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	mqConn *amqp.Connection
}

// New инициализирует зависимости и собирает приложение.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	mqChannel, err := rabbitmq.SetupChannel(mqConn, libmq.GetBillingQueues())
	if err != nil {
		return nil, err
	}

	providerClient := paymentprovider.NewClient(cfg.Stripe.SecretKey)
	publisher := rabbitmq.NewRetentionPublisher(mqChannel)

	subscriptionService := subscriptionservice.New(db, cacheRedis, providerClient, logger)
	notificationService := notificationservice.New(db, logger)
	webhookService := webhookservice.New(db, cacheRedis, notificationService, publisher, logger)
	retentionService := retentionservice.New(db, cacheRedis, cfg.Retention, logger)
	chatService := chatservice.New(db, subscriptionService, subscriptionService, retentionService, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg,
		subscriptionService, webhookService, notificationService, chatService, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		mqConn: mqConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.mqConn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
