// Package webhook обрабатывает нормализованные события платёжного провайдера:
// дедупликация по идентификатору события, применение машины состояний,
// сохранение записи, уведомление пользователя и постановка задачи
// синхронизатора хранения при смене тарифа.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/metrics"
	"github.com/homebiyori/billing-service/internal/models"
	"github.com/homebiyori/billing-service/internal/services/subscription"
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// Маркер обработанного события живёт дольше окна повторных доставок
// провайдера (Stripe повторяет до трёх суток).
const eventMarkerTTL = 72 * time.Hour

// Repository определяет методы хранилища, нужные обработчику событий.
type Repository interface {
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, rec *models.Subscription) error
}

// Cache описывает методы Redis для дедупликации и инвалидации.
type Cache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Notifier создаёт уведомление пользователю о бизнес-событии.
type Notifier interface {
	Emit(ctx context.Context, userUID string, ntype models.NotificationType, priority models.NotificationPriority) error
}

// TaskPublisher ставит задачу ресинка хранения в очередь.
type TaskPublisher interface {
	PublishRetentionTask(task models.RetentionTask) error
}

// Service реализует обработку событий провайдера.
type Service struct {
	repo      Repository
	cache     Cache
	notifier  Notifier
	publisher TaskPublisher
	log       *slog.Logger
	now       func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, notifier Notifier, publisher TaskPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// ProcessEvent применяет событие к записи подписки. Ошибка означает, что
// провайдер должен повторить доставку; маркер обработанного события
// ставится только после успешного применения, а сами переходы идемпотентны,
// поэтому повтор после частичного сбоя безопасен.
func (s *Service) ProcessEvent(ctx context.Context, ev models.BillingEvent) error {
	const op = "services.webhook.ProcessEvent"

	log := s.log.With(
		slog.String("event_id", ev.ID),
		slog.String("event_kind", string(ev.Kind)),
	)

	markerKey := fmt.Sprintf("stripe:event:%s", ev.ID)
	seen, err := s.cache.Exists(ctx, markerKey)
	if err != nil {
		// Redis недоступен — продолжаем без дедупликации,
		// переходы и так идемпотентны.
		log.Warn("failed to check event marker", sl.Err(err))
	}
	if seen {
		log.Info("duplicate event skipped")
		metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "duplicate").Inc()
		return nil
	}

	current, err := s.loadCurrent(ctx, ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	out := subscription.Apply(current, ev, s.now())
	if !out.Changed {
		log.Info("event is a no-op")
		metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "noop").Inc()
		s.markProcessed(markerKey, log)
		return nil
	}

	if err := s.repo.UpsertSubscription(ctx, &out.Record); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(out.Record.UserUID, log)

	if out.Notification != nil {
		if err := s.notifier.Emit(ctx, out.Record.UserUID, out.Notification.Type, out.Notification.Priority); err != nil {
			// Запись уже сохранена, повтор события будет no-op:
			// уведомление не стоит ответа 500 провайдеру.
			log.Error("failed to emit notification", sl.Err(err))
		}
	}

	if out.PlanChanged {
		task := models.RetentionTask{
			UserUID: out.Record.UserUID,
			OldPlan: out.OldPlan,
			NewPlan: out.Record.Plan,
			EventID: ev.ID,
		}
		if err := s.publisher.PublishRetentionTask(task); err != nil {
			log.Error("failed to publish retention task",
				slog.String("user_uid", task.UserUID), sl.Err(err))
		} else {
			log.Info("retention task published",
				slog.String("user_uid", task.UserUID),
				slog.String("old_plan", string(task.OldPlan)),
				slog.String("new_plan", string(task.NewPlan)))
		}
	}

	s.markProcessed(markerKey, log)
	metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "applied").Inc()
	log.Info("event applied",
		slog.String("user_uid", out.Record.UserUID),
		slog.String("status", string(out.Record.Status)))
	return nil
}

// loadCurrent находит запись, к которой относится событие. Для checkout
// запись ищется по пользователю из metadata, для остальных — по покупателю.
// Отсутствие записи — не ошибка: машина состояний решает сама.
func (s *Service) loadCurrent(ctx context.Context, ev models.BillingEvent) (*models.Subscription, error) {
	var (
		rec *models.Subscription
		err error
	)
	if ev.Kind == models.EventCheckoutCompleted {
		rec, err = s.repo.GetSubscription(ctx, ev.UserUID)
	} else {
		rec, err = s.repo.GetSubscriptionByCustomer(ctx, ev.StripeCustomerID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) markProcessed(key string, log *slog.Logger) {
	if err := s.cache.Set(key, 1, eventMarkerTTL); err != nil {
		log.Warn("failed to set event marker", sl.Err(err))
	}
}

func (s *Service) invalidate(userUID string, log *slog.Logger) {
	cacheKey := fmt.Sprintf("subscription:%s", userUID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}
}
