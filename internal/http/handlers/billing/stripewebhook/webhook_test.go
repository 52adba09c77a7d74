package stripewebhook

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	stripewh "github.com/stripe/stripe-go/v82/webhook"

	"github.com/homebiyori/billing-service/internal/config"
	"github.com/homebiyori/billing-service/internal/models"
)

const testSecret = "whsec_test"

// MockService реализует интерфейс Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ProcessEvent(ctx context.Context, ev models.BillingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newTestHandler(service Service) *Handler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(logger, service, config.Stripe{
		WebhookSecret:  testSecret,
		MonthlyPriceID: "price_monthly",
		YearlyPriceID:  "price_yearly",
	})
}

func signedRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	signed := stripewh.GenerateTestSignedPayload(&stripewh.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	req.Header.Set("Content-Type", "application/json")
	return req
}

const checkoutPayload = `{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {"object": {
		"id": "cs_1",
		"customer": "cus_1",
		"subscription": "sub_1",
		"metadata": {"user_uid": "user-1", "plan": "monthly"}
	}}
}`

func TestServeHTTPCheckout(t *testing.T) {
	service := new(MockService)
	service.On("ProcessEvent", mock.Anything, models.BillingEvent{
		ID:                   "evt_1",
		Kind:                 models.EventCheckoutCompleted,
		UserUID:              "user-1",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Plan:                 models.PlanMonthly,
	}).Return(nil)

	rr := httptest.NewRecorder()
	newTestHandler(service).ServeHTTP(rr, signedRequest(t, checkoutPayload))

	assert.Equal(t, http.StatusOK, rr.Code)
	service.AssertExpectations(t)
}

func TestServeHTTPBadSignature(t *testing.T) {
	service := new(MockService)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook",
		bytes.NewReader([]byte(checkoutPayload)))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")

	rr := httptest.NewRecorder()
	newTestHandler(service).ServeHTTP(rr, req)

	// Хранилище не трогается при неверной подписи.
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	service.AssertNotCalled(t, "ProcessEvent", mock.Anything, mock.Anything)
}

func TestServeHTTPUnknownEventIsAcknowledged(t *testing.T) {
	service := new(MockService)

	payload := `{"id": "evt_2", "type": "customer.created", "data": {"object": {}}}`
	rr := httptest.NewRecorder()
	newTestHandler(service).ServeHTTP(rr, signedRequest(t, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	service.AssertNotCalled(t, "ProcessEvent", mock.Anything, mock.Anything)
}

func TestServeHTTPCheckoutWithoutUserIsRejected(t *testing.T) {
	service := new(MockService)

	payload := `{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "customer": "cus_1", "subscription": "sub_1"}}
	}`
	rr := httptest.NewRecorder()
	newTestHandler(service).ServeHTTP(rr, signedRequest(t, payload))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	service.AssertNotCalled(t, "ProcessEvent", mock.Anything, mock.Anything)
}

func TestServeHTTPSubscriptionUpdated(t *testing.T) {
	service := new(MockService)
	service.On("ProcessEvent", mock.Anything, mock.MatchedBy(func(ev models.BillingEvent) bool {
		return ev.Kind == models.EventSubscriptionUpdated &&
			ev.StripeCustomerID == "cus_1" &&
			ev.StripeSubscriptionID == "sub_1" &&
			ev.CancelAtPeriodEnd &&
			ev.Plan == models.PlanYearly &&
			ev.CurrentPeriodEnd.Equal(time.Unix(1750000000, 0).UTC())
	})).Return(nil)

	payload := `{
		"id": "evt_4",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": "active",
			"cancel_at_period_end": true,
			"items": {"data": [{
				"current_period_start": 1747000000,
				"current_period_end": 1750000000,
				"price": {"id": "price_yearly"}
			}]}
		}}
	}`
	rr := httptest.NewRecorder()
	newTestHandler(service).ServeHTTP(rr, signedRequest(t, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	service.AssertExpectations(t)
}

func TestServeHTTPServiceFailure(t *testing.T) {
	service := new(MockService)
	service.On("ProcessEvent", mock.Anything, mock.Anything).Return(errors.New("db down"))

	rr := httptest.NewRecorder()
	newTestHandler(service).ServeHTTP(rr, signedRequest(t, checkoutPayload))

	// 500 заставит провайдера повторить доставку.
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
