package webhook

import (
	"context"
	"errors"
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

func (m *MockRepository) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) UpsertSubscription(ctx context.Context, rec *models.Subscription) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockNotifier реализует интерфейс Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Emit(ctx context.Context, userUID string, ntype models.NotificationType, priority models.NotificationPriority) error {
	args := m.Called(ctx, userUID, ntype, priority)
	return args.Error(0)
}

// MockPublisher реализует интерфейс TaskPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishRetentionTask(task models.RetentionTask) error {
	args := m.Called(task)
	return args.Error(0)
}

// fakeCache кеш в памяти: маркеры событий и инвалидация
type fakeCache struct {
	values map[string]struct{}
}

func newFakeCache() *fakeCache { return &fakeCache{values: map[string]struct{}{}} }

func (f *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeCache) Set(key string, _ any, _ time.Duration) error {
	f.values[key] = struct{}{}
	return nil
}

func (f *fakeCache) Invalidate(key string) error {
	delete(f.values, key)
	return nil
}

func newTestService(repo Repository, cache Cache, notifier Notifier, publisher TaskPublisher) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := New(repo, cache, notifier, publisher, logger)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func checkoutEvent() models.BillingEvent {
	return models.BillingEvent{
		ID:                   "evt_checkout_1",
		Kind:                 models.EventCheckoutCompleted,
		UserUID:              "user-1",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Plan:                 models.PlanMonthly,
		CurrentPeriodStart:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProcessEventCheckoutCreatesRecordAndPublishesTask(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetSubscription", mock.Anything, "user-1").Return(nil, repository.ErrNotFound)
	repo.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(rec *models.Subscription) bool {
		return rec.UserUID == "user-1" &&
			rec.Status == models.StatusActive &&
			rec.Plan == models.PlanMonthly &&
			rec.PremiumAccess
	})).Return(nil)

	publisher := new(MockPublisher)
	publisher.On("PublishRetentionTask", models.RetentionTask{
		UserUID: "user-1",
		OldPlan: models.PlanFree,
		NewPlan: models.PlanMonthly,
		EventID: "evt_checkout_1",
	}).Return(nil)

	svc := newTestService(repo, newFakeCache(), new(MockNotifier), publisher)
	err := svc.ProcessEvent(context.Background(), checkoutEvent())

	require.NoError(t, err)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestProcessEventDuplicateIsSkipped(t *testing.T) {
	cache := newFakeCache()
	require.NoError(t, cache.Set("stripe:event:evt_checkout_1", 1, time.Hour))

	repo := new(MockRepository)
	svc := newTestService(repo, cache, new(MockNotifier), new(MockPublisher))

	err := svc.ProcessEvent(context.Background(), checkoutEvent())

	require.NoError(t, err)
	repo.AssertNotCalled(t, "UpsertSubscription", mock.Anything, mock.Anything)
}

func TestProcessEventCancelEmitsNotification(t *testing.T) {
	current := &models.Subscription{
		UserUID:              "user-1",
		Plan:                 models.PlanMonthly,
		Status:               models.StatusActive,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		CurrentPeriodEnd:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		PremiumAccess:        true,
	}

	repo := new(MockRepository)
	repo.On("GetSubscriptionByCustomer", mock.Anything, "cus_1").Return(current, nil)
	repo.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(rec *models.Subscription) bool {
		return rec.Status == models.StatusCancelScheduled && rec.PremiumAccess
	})).Return(nil)

	notifier := new(MockNotifier)
	notifier.On("Emit", mock.Anything, "user-1",
		models.NotificationSubscriptionCanceled, models.PriorityNormal).Return(nil)

	publisher := new(MockPublisher)

	svc := newTestService(repo, newFakeCache(), notifier, publisher)
	err := svc.ProcessEvent(context.Background(), models.BillingEvent{
		ID:                "evt_cancel_1",
		Kind:              models.EventSubscriptionUpdated,
		StripeCustomerID:  "cus_1",
		CancelAtPeriodEnd: true,
		Plan:              models.PlanMonthly,
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
	// Тариф не менялся — ресинк хранения не нужен.
	publisher.AssertNotCalled(t, "PublishRetentionTask", mock.Anything)
}

func TestProcessEventForUnknownCustomerIsNoop(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetSubscriptionByCustomer", mock.Anything, "cus_ghost").Return(nil, repository.ErrNotFound)

	svc := newTestService(repo, newFakeCache(), new(MockNotifier), new(MockPublisher))
	err := svc.ProcessEvent(context.Background(), models.BillingEvent{
		ID:               "evt_ghost_1",
		Kind:             models.EventPaymentFailed,
		StripeCustomerID: "cus_ghost",
	})

	require.NoError(t, err)
	repo.AssertNotCalled(t, "UpsertSubscription", mock.Anything, mock.Anything)
}

func TestProcessEventUpsertFailureReturnsError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetSubscription", mock.Anything, "user-1").Return(nil, repository.ErrNotFound)
	repo.On("UpsertSubscription", mock.Anything, mock.Anything).Return(errors.New("db down"))

	cache := newFakeCache()
	svc := newTestService(repo, cache, new(MockNotifier), new(MockPublisher))
	err := svc.ProcessEvent(context.Background(), checkoutEvent())

	require.Error(t, err)
	// Маркер не поставлен: повторная доставка должна обработаться заново.
	seen, _ := cache.Exists(context.Background(), "stripe:event:evt_checkout_1")
	assert.False(t, seen)
}

func TestProcessEventPublishFailureDoesNotFailEvent(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetSubscription", mock.Anything, "user-1").Return(nil, repository.ErrNotFound)
	repo.On("UpsertSubscription", mock.Anything, mock.Anything).Return(nil)

	publisher := new(MockPublisher)
	publisher.On("PublishRetentionTask", mock.Anything).Return(errors.New("amqp closed"))

	svc := newTestService(repo, newFakeCache(), new(MockNotifier), publisher)
	err := svc.ProcessEvent(context.Background(), checkoutEvent())

	// Потеря задачи ресинка логируется, но не превращается в 500 провайдеру.
	require.NoError(t, err)
}
