package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/metrics"
	"github.com/homebiyori/billing-service/internal/models"
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// Repository определяет методы хранилища, нужные сервису подписок.
type Repository interface {
	// GetSubscription возвращает запись подписки пользователя.
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	// CorrectExpiredSubscription переводит просроченную cancel_scheduled в canceled.
	CorrectExpiredSubscription(ctx context.Context, userUID string, now time.Time) (int, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// PaymentProvider описывает операции платёжного провайдера,
// инициируемые пользователем.
type PaymentProvider interface {
	ScheduleCancel(ctx context.Context, subscriptionID string) error
	Reactivate(ctx context.Context, subscriptionID string) error
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
}

// ErrNoPaidSubscription возвращается операциями, требующими оплаченной подписки.
var ErrNoPaidSubscription = errors.New("no paid subscription")

// Service реализует проверку доступа и пользовательские операции биллинга.
type Service struct {
	repo     Repository
	cache    Cache
	provider PaymentProvider
	log      *slog.Logger
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, provider PaymentProvider, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		provider: provider,
		log:      log,
		now:      time.Now,
	}
}

// Get возвращает запись подписки пользователя для экрана биллинга.
// Короткий кэш допустим: экран не принимает решений о доступе.
func (s *Service) Get(ctx context.Context, userUID string) (*models.Subscription, error) {
	cacheKey := fmt.Sprintf("subscription:%s", userUID)
	var cached models.Subscription
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read subscription from cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	rec, err := s.repo.GetSubscription(ctx, userUID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(cacheKey, rec, time.Minute); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), sl.Err(err))
	}
	return rec, nil
}

// CheckAccess решает, доступны ли пользователю премиум-функции.
// Вызывается на каждую премиум-операцию и никогда не кэшируется:
// ветка cancel_scheduled зависит от текущего времени и может выполнить
// корректирующую запись, если webhook об окончании периода потерялся
// или запоздал.
func (s *Service) CheckAccess(ctx context.Context, userUID string) (*models.AccessResult, error) {
	const op = "services.subscription.CheckAccess"

	rec, err := s.repo.GetSubscription(ctx, userUID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.AccessResult{HasAccess: false, Reason: models.ReasonNoSubscription}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !rec.HasPaidRelationship() {
		return &models.AccessResult{HasAccess: false, Reason: models.ReasonNoSubscription}, nil
	}

	now := s.now()
	switch rec.Status {
	case models.StatusActive:
		return &models.AccessResult{HasAccess: true, Reason: models.ReasonActive}, nil

	case models.StatusCancelScheduled:
		if !now.After(rec.CurrentPeriodEnd) {
			end := rec.CurrentPeriodEnd
			return &models.AccessResult{
				HasAccess: true,
				Reason:    models.ReasonCancelScheduled,
				ExpiresAt: &end,
			}, nil
		}
		// Период закончился, а subscription.deleted так и не пришёл:
		// единственное место самовосстановления состояния.
		rows, err := s.repo.CorrectExpiredSubscription(ctx, userUID, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if rows > 0 {
			metrics.CorrectiveWritesTotal.Inc()
			s.invalidate(userUID)
			s.log.Warn("stale access corrected",
				slog.String("user_uid", userUID),
				slog.Time("current_period_end", rec.CurrentPeriodEnd))
		}
		return &models.AccessResult{HasAccess: false, Reason: models.ReasonSubscriptionExpired}, nil

	default:
		return &models.AccessResult{HasAccess: false, Reason: models.AccessReason(rec.Status)}, nil
	}
}

// Cancel просит провайдера отменить подписку в конце оплаченного периода.
// Запись подписки изменится, когда провайдер пришлёт webhook.
func (s *Service) Cancel(ctx context.Context, userUID string) error {
	const op = "services.subscription.Cancel"
	rec, err := s.loadPaid(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.provider.ScheduleCancel(ctx, rec.StripeSubscriptionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(userUID)
	return nil
}

// Reactivate снимает отложенную отмену подписки у провайдера.
func (s *Service) Reactivate(ctx context.Context, userUID string) error {
	const op = "services.subscription.Reactivate"
	rec, err := s.loadPaid(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.provider.Reactivate(ctx, rec.StripeSubscriptionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(userUID)
	return nil
}

// PortalURL возвращает URL сессии биллинг-портала провайдера.
func (s *Service) PortalURL(ctx context.Context, userUID, returnURL string) (string, error) {
	const op = "services.subscription.PortalURL"
	rec, err := s.loadPaid(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	url, err := s.provider.PortalURL(ctx, rec.StripeCustomerID, returnURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}

func (s *Service) loadPaid(ctx context.Context, userUID string) (*models.Subscription, error) {
	rec, err := s.repo.GetSubscription(ctx, userUID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoPaidSubscription
	}
	if err != nil {
		return nil, err
	}
	if !rec.HasPaidRelationship() {
		return nil, ErrNoPaidSubscription
	}
	return rec, nil
}

func (s *Service) invalidate(userUID string) {
	cacheKey := fmt.Sprintf("subscription:%s", userUID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate subscription cache", slog.String("key", cacheKey), sl.Err(err))
	}
}
