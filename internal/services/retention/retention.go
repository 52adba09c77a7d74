// Package retention реализует синхронизатор хранения истории чата:
// при смене тарифа сдвигает expires_at всех реплик пользователя на разницу
// окон хранения. Работает асинхронно из очереди, обходит историю пакетами
// и переживает повторную доставку задачи без двойного сдвига.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/homebiyori/billing-service/internal/config"
	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/metrics"
	"github.com/homebiyori/billing-service/internal/models"
)

// Сдвиг вниз не опускает expires_at ниже now+expiryFloor: пользователь
// успевает увидеть историю и экспортировать её после понижения тарифа.
const expiryFloor = 24 * time.Hour

// Repository определяет методы хранилища, нужные синхронизатору.
type Repository interface {
	ListChatEntryKeys(ctx context.Context, userUID string, after time.Time, limit int) ([]time.Time, error)
	ShiftChatExpiry(ctx context.Context, userUID string, keys []time.Time, deltaDays int, floor time.Time) (int, error)
}

// Cache описывает методы Redis для маркеров выполнения и курсора обхода.
type Cache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует ресинк окна хранения.
type Service struct {
	repo  Repository
	cache Cache
	cfg   config.Retention
	log   *slog.Logger
	now   func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, cfg config.Retention, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// HandleMessage обрабатывает сообщение очереди задач ресинка.
// Ошибка возвращает сообщение в очередь для повторной доставки.
func (s *Service) HandleMessage(body []byte) error {
	const op = "services.retention.HandleMessage"

	var task models.RetentionTask
	if err := json.Unmarshal(body, &task); err != nil {
		// Нечитаемое сообщение бессмысленно возвращать в очередь,
		// оно упадёт так же и в следующий раз.
		s.log.Error("failed to unmarshal retention task", sl.Err(err))
		return nil
	}
	if task.UserUID == "" || task.EventID == "" {
		s.log.Error("retention task without user or event id skipped")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SyncTimeout)
	defer cancel()

	if err := s.Resync(ctx, task); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Resync сдвигает expires_at всех реплик пользователя на разницу окон
// хранения старого и нового тарифа. Идемпотентен: выполненная задача
// помечается маркером, а прерванная возобновляется с курсора последнего
// завершённого пакета, не трогая уже сдвинутые записи.
func (s *Service) Resync(ctx context.Context, task models.RetentionTask) error {
	const op = "services.retention.Resync"

	log := s.log.With(
		slog.String("user_uid", task.UserUID),
		slog.String("event_id", task.EventID),
	)

	doneKey := fmt.Sprintf("retention:done:%s:%s", task.UserUID, task.EventID)
	done, err := s.cache.Exists(ctx, doneKey)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if done {
		log.Info("retention task already completed")
		metrics.RetentionResyncsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	delta := s.retentionDays(task.NewPlan) - s.retentionDays(task.OldPlan)
	if delta == 0 {
		s.markDone(doneKey, log)
		metrics.RetentionResyncsTotal.WithLabelValues("noop").Inc()
		return nil
	}

	cursorKey := fmt.Sprintf("retention:cursor:%s:%s", task.UserUID, task.EventID)
	var cursor time.Time
	if _, err := s.cache.Get(cursorKey, &cursor); err != nil {
		log.Warn("failed to read resync cursor, starting over is unsafe", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	floor := s.now().Add(expiryFloor)
	total := 0
	for {
		keys, err := s.repo.ListChatEntryKeys(ctx, task.UserUID, cursor, s.cfg.BatchSize)
		if err != nil {
			metrics.RetentionResyncsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("%s: %w", op, err)
		}
		if len(keys) == 0 {
			break
		}

		shifted, err := s.repo.ShiftChatExpiry(ctx, task.UserUID, keys, delta, floor)
		if err != nil {
			metrics.RetentionResyncsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("%s: %w", op, err)
		}
		total += shifted
		metrics.RetentionEntriesShiftedTotal.Add(float64(shifted))

		// Курсор фиксируется после каждого пакета: повторная доставка
		// прерванной задачи продолжит с этого места, а не сдвинет
		// обработанные записи второй раз.
		cursor = keys[len(keys)-1]
		if err := s.cache.Set(cursorKey, cursor, s.cfg.MarkerTTL); err != nil {
			metrics.RetentionResyncsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	// Курсор удаляется только после маркера: если маркер не записался,
	// курсор за концом истории сам защитит повтор от второго сдвига.
	if s.markDone(doneKey, log) {
		if err := s.cache.Invalidate(cursorKey); err != nil {
			log.Warn("failed to drop resync cursor", sl.Err(err))
		}
	}

	metrics.RetentionResyncsTotal.WithLabelValues("ok").Inc()
	log.Info("retention resync completed",
		slog.Int("delta_days", delta),
		slog.Int("entries_shifted", total))
	return nil
}

// RetentionDeadline вычисляет expires_at новой реплики для тарифа.
func (s *Service) RetentionDeadline(plan models.Plan, createdAt time.Time) time.Time {
	return createdAt.AddDate(0, 0, s.retentionDays(plan))
}

func (s *Service) retentionDays(plan models.Plan) int {
	if plan.IsPaid() {
		return s.cfg.PaidDays
	}
	return s.cfg.FreeDays
}

func (s *Service) markDone(key string, log *slog.Logger) bool {
	if err := s.cache.Set(key, 1, s.cfg.MarkerTTL); err != nil {
		log.Warn("failed to set done marker", sl.Err(err))
		return false
	}
	return true
}
