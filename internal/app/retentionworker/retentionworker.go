// Package retentionworker содержит воркер синхронизатора хранения:
// потребляет задачи ресинка из очереди и сдвигает окна хранения истории чата.
package retentionworker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/homebiyori/billing-service/internal/cache"
	"github.com/homebiyori/billing-service/internal/config"
	libmq "github.com/homebiyori/billing-service/internal/lib/rabbitmq"
	"github.com/homebiyori/billing-service/internal/rabbitmq"
	retentionservice "github.com/homebiyori/billing-service/internal/services/retention"
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// App представляет приложение воркера синхронизатора хранения.
type App struct {
	retentionService *retentionservice.Service
	conn             *amqp.Connection
	ch               *amqp.Channel
	logger           *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		err := db.CheckDatabaseReady(ctx)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения воркера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, libmq.GetBillingQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	retentionService := retentionservice.New(db, cacheRedis, cfg.Retention, logger)

	return &App{
		retentionService: retentionService,
		conn:             conn,
		ch:               ch,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run подписывается на очередь задач ресинка и работает до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.ch, libmq.RetentionQueue, a.retentionService.HandleMessage); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	a.logger.Info("retention worker consuming", slog.String("queue", libmq.RetentionQueue))

	<-ctx.Done()

	a.logger.Info("shutting down retention worker")
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
