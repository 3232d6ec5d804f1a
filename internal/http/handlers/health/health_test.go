package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ok(context.Context) error { return nil }

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name           string
		checks         map[string]Pinger
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "all healthy",
			checks:         map[string]Pinger{"postgres": PingFunc(ok), "redis": PingFunc(ok)},
			expectedStatus: http.StatusOK,
			expectedBody:   `"data":{"postgres":"ok","redis":"ok"}`,
		},
		{
			name:           "redis down",
			checks:         map[string]Pinger{"postgres": PingFunc(ok), "redis": PingFunc(down)},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `"error":"unavailable: redis"`,
		},
		{
			name:           "two down",
			checks:         map[string]Pinger{"rabbitmq": PingFunc(down), "postgres": PingFunc(down)},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `"error":"unavailable: postgres, rabbitmq"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			New(logger, tt.checks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}
