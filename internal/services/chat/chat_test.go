package chat

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
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// MockRepository реализует интерфейс Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateChatEntry(ctx context.Context, entry models.ChatEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) ListChatEntries(ctx context.Context, userUID string, limit, offset int) ([]*models.ChatEntry, error) {
	args := m.Called(ctx, userUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatEntry), args.Error(1)
}

// MockAccess реализует интерфейс AccessChecker
type MockAccess struct {
	mock.Mock
}

func (m *MockAccess) CheckAccess(ctx context.Context, userUID string) (*models.AccessResult, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessResult), args.Error(1)
}

// MockPlans реализует интерфейс PlanReader
type MockPlans struct {
	mock.Mock
}

func (m *MockPlans) Get(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

// fixedRetention детерминированный расчёт expires_at для тестов
type fixedRetention struct{}

func (fixedRetention) RetentionDeadline(plan models.Plan, createdAt time.Time) time.Time {
	if plan.IsPaid() {
		return createdAt.AddDate(0, 0, 180)
	}
	return createdAt.AddDate(0, 0, 30)
}

var chatNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository, access AccessChecker, plans PlanReader) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := New(repo, access, plans, fixedRetention{}, logger)
	svc.now = func() time.Time { return chatNow }
	return svc
}

func TestAppendFreePersonaSkipsAccessCheck(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateChatEntry", mock.Anything, mock.MatchedBy(func(e models.ChatEntry) bool {
		return e.UserUID == "user-1" &&
			e.PlanAtCreation == models.PlanFree &&
			e.ExpiresAt.Equal(chatNow.AddDate(0, 0, 30))
	})).Return(nil)

	access := new(MockAccess)
	plans := new(MockPlans)
	plans.On("Get", mock.Anything, "user-1").Return(nil, repository.ErrNotFound)

	svc := newTestService(repo, access, plans)
	entry, err := svc.Append(context.Background(), "user-1", models.DummyChatEntry{
		Content: "こんにちは",
		Persona: "tama",
	})

	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, entry.PlanAtCreation)
	access.AssertNotCalled(t, "CheckAccess", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestAppendPremiumPersonaWithAccess(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateChatEntry", mock.Anything, mock.MatchedBy(func(e models.ChatEntry) bool {
		return e.PlanAtCreation == models.PlanMonthly &&
			e.ExpiresAt.Equal(chatNow.AddDate(0, 0, 180))
	})).Return(nil)

	access := new(MockAccess)
	access.On("CheckAccess", mock.Anything, "user-1").Return(&models.AccessResult{
		HasAccess: true,
		Reason:    models.ReasonActive,
	}, nil)

	plans := new(MockPlans)
	plans.On("Get", mock.Anything, "user-1").Return(&models.Subscription{
		UserUID: "user-1",
		Plan:    models.PlanMonthly,
		Status:  models.StatusActive,
	}, nil)

	svc := newTestService(repo, access, plans)
	_, err := svc.Append(context.Background(), "user-1", models.DummyChatEntry{
		Content: "group chat",
		Persona: "group",
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
	access.AssertExpectations(t)
}

func TestAppendPremiumPersonaWithoutAccess(t *testing.T) {
	access := new(MockAccess)
	access.On("CheckAccess", mock.Anything, "user-1").Return(&models.AccessResult{
		HasAccess: false,
		Reason:    models.ReasonSubscriptionExpired,
	}, nil)

	repo := new(MockRepository)
	svc := newTestService(repo, access, new(MockPlans))

	_, err := svc.Append(context.Background(), "user-1", models.DummyChatEntry{
		Content: "group chat",
		Persona: "group",
	})

	require.ErrorIs(t, err, ErrPremiumRequired)
	repo.AssertNotCalled(t, "CreateChatEntry", mock.Anything, mock.Anything)
}
