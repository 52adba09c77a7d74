package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/homebiyori/billing-service/internal/http/middlewarectx"
	"github.com/homebiyori/billing-service/internal/services/subscription"
)

// MockService реализует интерфейс Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Cancel(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

func newTestHandler(service Service) *Handler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(logger, service)
}

func newRequest(userUID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/cancel", nil)
	if userUID != "" {
		ctx := context.WithValue(req.Context(), middlewarectx.UserUID, userUID)
		req = req.WithContext(ctx)
	}
	return req
}

func TestServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		userUID    string
		serviceErr error
		wantStatus int
	}{
		{
			name:       "успешная отмена",
			userUID:    "user-1",
			serviceErr: nil,
			wantStatus: http.StatusOK,
		},
		{
			name:       "нет оплаченной подписки",
			userUID:    "user-1",
			serviceErr: subscription.ErrNoPaidSubscription,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "ошибка провайдера",
			userUID:    "user-1",
			serviceErr: errors.New("stripe unavailable"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "нет пользователя в контексте",
			userUID:    "",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			if tt.userUID != "" {
				service.On("Cancel", mock.Anything, tt.userUID).Return(tt.serviceErr)
			}

			rr := httptest.NewRecorder()
			newTestHandler(service).ServeHTTP(rr, newRequest(tt.userUID))

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
