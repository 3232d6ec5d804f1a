package reissue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ReissueInvite(ctx context.Context, key int64) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func TestReissueHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "issued",
			setupMock: func(m *MockService) {
				m.On("ReissueInvite", mock.Anything, int64(4)).Return("https://t.me/+abc", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"invite_link":"https://t.me/+abc"`,
		},
		{
			name: "link already present",
			setupMock: func(m *MockService) {
				m.On("ReissueInvite", mock.Anything, int64(4)).Return("", fmt.Errorf("op: %w", models.ErrDecisionConflict))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `already has a link`,
		},
		{
			name: "gateway refused",
			setupMock: func(m *MockService) {
				m.On("ReissueInvite", mock.Anything, int64(4)).Return("",
					fmt.Errorf("op: %w: %w", models.ErrInviteIssue, errors.New("not enough rights to manage chat invite link")))
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `У бота недостаточно прав`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/payments/4/invite", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("key", "4")
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			w := httptest.NewRecorder()

			New(logger, mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
