package notification

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/homebiyori/billing-service/internal/models"
)

// MockRepository реализует интерфейс Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateNotification(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockRepository) ListUnreadNotifications(ctx context.Context, userUID string, limit int) ([]*models.Notification, error) {
	args := m.Called(ctx, userUID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockRepository) MarkNotificationRead(ctx context.Context, id, userUID string) (int, error) {
	args := m.Called(ctx, id, userUID)
	return args.Int(0), args.Error(1)
}

var notifNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := New(repo, logger)
	svc.now = func() time.Time { return notifNow }
	return svc
}

func TestEmitFillsTemplateAndExpiry(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserUID == "user-1" &&
			n.Type == models.NotificationPaymentFailed &&
			n.Priority == models.PriorityHigh &&
			n.Title != "" && n.Message != "" &&
			n.ID != "" &&
			!n.IsRead &&
			n.ExpiresAt.Equal(notifNow.Add(90*24*time.Hour))
	})).Return(nil)

	svc := newTestService(repo)
	err := svc.Emit(context.Background(), "user-1",
		models.NotificationPaymentFailed, models.PriorityHigh)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestEmitUnknownTypeFails(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	err := svc.Emit(context.Background(), "user-1",
		models.NotificationType("weird"), models.PriorityNormal)

	require.Error(t, err)
	repo.AssertNotCalled(t, "CreateNotification", mock.Anything, mock.Anything)
}

func TestListUnreadPassesPageCap(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListUnreadNotifications", mock.Anything, "user-1", 50).
		Return([]*models.Notification{{ID: "n1"}}, nil)

	svc := newTestService(repo)
	result, err := svc.ListUnread(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Len(t, result, 1)
	repo.AssertExpectations(t)
}

func TestMarkReadMissingIsNoop(t *testing.T) {
	// Чужое, отсутствующее или уже прочитанное уведомление — не ошибка.
	repo := new(MockRepository)
	repo.On("MarkNotificationRead", mock.Anything, "n-ghost", "user-1").Return(0, nil)

	svc := newTestService(repo)
	err := svc.MarkRead(context.Background(), "n-ghost", "user-1")

	require.NoError(t, err)
}
