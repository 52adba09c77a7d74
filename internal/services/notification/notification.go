// Package notification реализует внутриигровые уведомления пользователя:
// создание записи на бизнес-событие биллинга, выдачу непрочитанных
// и пометку прочитанным. Бизнес-логики здесь нет — только append и чтение.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homebiyori/billing-service/internal/models"
)

// Окно хранения уведомлений и размер страницы выдачи.
const (
	retentionWindow = 90 * 24 * time.Hour
	pageSize        = 50
)

// Repository определяет методы хранилища уведомлений.
type Repository interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	ListUnreadNotifications(ctx context.Context, userUID string, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userUID string) (int, error)
}

// Service реализует операции с уведомлениями.
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// template тексты уведомления для вида бизнес-события.
type template struct {
	title   string
	message string
}

// Тексты показываются в приложении как есть, язык продукта — японский.
var templates = map[models.NotificationType]template{
	models.NotificationSubscriptionCanceled: {
		title:   "解約手続きを受け付けました",
		message: "プレミアムプランの解約を受け付けました。現在の期間終了日までは引き続きご利用いただけます。",
	},
	models.NotificationSubscriptionReactivated: {
		title:   "解約を取り消しました",
		message: "プレミアムプランの継続が確定しました。引き続きお楽しみください。",
	},
	models.NotificationSubscriptionDeleted: {
		title:   "プレミアムプランが終了しました",
		message: "ご利用期間が終了したため、フリープランに切り替わりました。",
	},
	models.NotificationPaymentFailed: {
		title:   "お支払いに失敗しました",
		message: "お支払いの処理に失敗しました。お支払い方法をご確認ください。",
	},
	models.NotificationPaymentSucceeded: {
		title:   "お支払いが完了しました",
		message: "お支払いが確認できました。プレミアムプランを引き続きご利用いただけます。",
	},
}

// Emit создает уведомление пользователю о бизнес-событии.
func (s *Service) Emit(ctx context.Context, userUID string, ntype models.NotificationType, priority models.NotificationPriority) error {
	const op = "services.notification.Emit"

	tpl, ok := templates[ntype]
	if !ok {
		return fmt.Errorf("%s: unknown notification type %q", op, ntype)
	}

	now := s.now()
	n := models.Notification{
		ID:        uuid.New().String(),
		UserUID:   userUID,
		Type:      ntype,
		Title:     tpl.title,
		Message:   tpl.message,
		Priority:  priority,
		IsRead:    false,
		CreatedAt: now,
		ExpiresAt: now.Add(retentionWindow),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("notification emitted",
		slog.String("user_uid", userUID),
		slog.String("type", string(ntype)))
	return nil
}

// ListUnread возвращает непрочитанные уведомления пользователя:
// высокий приоритет первым, внутри приоритета новые первыми.
func (s *Service) ListUnread(ctx context.Context, userUID string) ([]*models.Notification, error) {
	const op = "services.notification.ListUnread"
	result, err := s.repo.ListUnreadNotifications(ctx, userUID, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkRead помечает уведомление прочитанным. Отсутствующее, чужое или уже
// прочитанное уведомление — no-op, не ошибка.
func (s *Service) MarkRead(ctx context.Context, id, userUID string) error {
	const op = "services.notification.MarkRead"
	rows, err := s.repo.MarkNotificationRead(ctx, id, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		s.log.Info("mark read was a no-op",
			slog.String("notification_id", id),
			slog.String("user_uid", userUID))
	}
	return nil
}
