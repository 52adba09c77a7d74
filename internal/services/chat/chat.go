// Package chat реализует сохранение и выдачу истории чата с ИИ-персонажами.
// Сама генерация ответов персонажа выполняется внешним сервисом и сюда
// не входит; здесь только персистентность и премиум-гейт на персонажей.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/homebiyori/billing-service/internal/models"
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// Базовые персонажи доступны на любом тарифе, остальные требуют премиум.
var freePersonas = map[string]struct{}{
	"tama":   {},
	"madoka": {},
	"hide":   {},
}

// ErrPremiumRequired возвращается при выборе премиум-персонажа без доступа.
var ErrPremiumRequired = errors.New("premium access required")

// Repository определяет методы хранилища истории чата.
type Repository interface {
	CreateChatEntry(ctx context.Context, entry models.ChatEntry) error
	ListChatEntries(ctx context.Context, userUID string, limit, offset int) ([]*models.ChatEntry, error)
}

// AccessChecker решает, доступны ли пользователю премиум-функции.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userUID string) (*models.AccessResult, error)
}

// PlanReader возвращает текущую запись подписки пользователя.
type PlanReader interface {
	Get(ctx context.Context, userUID string) (*models.Subscription, error)
}

// RetentionCalc вычисляет expires_at новой реплики по тарифу.
type RetentionCalc interface {
	RetentionDeadline(plan models.Plan, createdAt time.Time) time.Time
}

// Service реализует операции с историей чата.
type Service struct {
	repo      Repository
	access    AccessChecker
	plans     PlanReader
	retention RetentionCalc
	log       *slog.Logger
	now       func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, access AccessChecker, plans PlanReader, retention RetentionCalc, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		access:    access,
		plans:     plans,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Append сохраняет реплику пользователя. Премиум-персонаж проверяется
// через гейт доступа при каждом обращении; expires_at рассчитывается
// по тарифу на момент создания.
func (s *Service) Append(ctx context.Context, userUID string, entry models.DummyChatEntry) (*models.ChatEntry, error) {
	const op = "services.chat.Append"

	if _, free := freePersonas[entry.Persona]; !free {
		res, err := s.access.CheckAccess(ctx, userUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !res.HasAccess {
			s.log.Info("premium persona rejected",
				slog.String("user_uid", userUID),
				slog.String("persona", entry.Persona),
				slog.String("reason", string(res.Reason)))
			return nil, ErrPremiumRequired
		}
	}

	plan := models.PlanFree
	rec, err := s.plans.Get(ctx, userUID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec != nil {
		plan = rec.Plan
	}

	now := s.now()
	stored := models.ChatEntry{
		UserUID:        userUID,
		CreatedAt:      now,
		Role:           "user",
		Content:        entry.Content,
		PlanAtCreation: plan,
		ExpiresAt:      s.retention.RetentionDeadline(plan, now),
	}
	if err := s.repo.CreateChatEntry(ctx, stored); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &stored, nil
}

// List возвращает историю чата пользователя в порядке создания.
func (s *Service) List(ctx context.Context, userUID string, limit, offset int) ([]*models.ChatEntry, error) {
	const op = "services.chat.List"
	result, err := s.repo.ListChatEntries(ctx, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
