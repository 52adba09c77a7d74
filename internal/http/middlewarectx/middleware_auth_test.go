package middlewarectx

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libjwt "github.com/homebiyori/billing-service/internal/lib/jwt"
)

func TestJWTMiddleware(t *testing.T) {
	maker := libjwt.NewJWTMaker("test-secret", time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var gotUID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserUIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := JWTMiddleware(maker, logger)(next)

	tests := []struct {
		name       string
		authHeader func() string
		wantStatus int
		wantUID    string
	}{
		{
			name: "валидный токен",
			authHeader: func() string {
				token, err := maker.GenerateToken("user-1")
				require.NoError(t, err)
				return "Bearer " + token
			},
			wantStatus: http.StatusOK,
			wantUID:    "user-1",
		},
		{
			name:       "заголовок отсутствует",
			authHeader: func() string { return "" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "мусор вместо токена",
			authHeader: func() string { return "Bearer not-a-token" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "токен с чужой подписью",
			authHeader: func() string {
				other := libjwt.NewJWTMaker("other-secret", time.Hour)
				token, err := other.GenerateToken("user-1")
				require.NoError(t, err)
				return "Bearer " + token
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUID = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
			if header := tt.authHeader(); header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantUID, gotUID)
		})
	}
}
