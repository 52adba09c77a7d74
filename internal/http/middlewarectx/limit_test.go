package middlewarectx

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	handler := RateLimitMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make(map[int]int)
	for range 200 {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat", nil))
		statuses[rr.Code]++
	}

	// Burst пропускается, хвост за его пределами отклоняется.
	assert.Greater(t, statuses[http.StatusOK], 0)
	assert.Greater(t, statuses[http.StatusTooManyRequests], 0)
}
