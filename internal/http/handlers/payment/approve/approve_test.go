package approve

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
	"github.com/magabrotheeeer/channel-paywall/internal/services/subscription"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Approve(ctx context.Context, key int64) (*subscription.ApprovalResult, error) {
	args := m.Called(ctx, key)
	if res := args.Get(0); res != nil {
		return res.(*subscription.ApprovalResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestApproveHandler(t *testing.T) {
	tests := []struct {
		name           string
		key            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "first purchase",
			key:  "15",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, int64(15)).Return(&subscription.ApprovalResult{
					Kind:    subscription.ApprovalIssued,
					Payment: &models.Payment{Key: 15, Status: models.StatusPayed},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"kind":"issued"`,
		},
		{
			name: "renewal",
			key:  "16",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, int64(16)).Return(&subscription.ApprovalResult{
					Kind:     subscription.ApprovalRenewed,
					Payment:  &models.Payment{Key: 16},
					Extended: &models.Payment{Key: 3},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"kind":"renewed"`,
		},
		{
			name:           "bad key",
			key:            "abc",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `failed to decode key from url`,
		},
		{
			name: "not found",
			key:  "1",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, int64(1)).Return(nil, fmt.Errorf("op: %w", models.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `payment not found`,
		},
		{
			name: "already decided",
			key:  "2",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, int64(2)).Return(nil, fmt.Errorf("op: %w", models.ErrDecisionConflict))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `payment already decided`,
		},
		{
			name: "invite issue",
			key:  "3",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, int64(3)).Return(nil,
					fmt.Errorf("op: %w: %w", models.ErrInviteIssue, errors.New("Bad Request: chat not found")))
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `Канал не найден`,
		},
		{
			name: "renewal not credited",
			key:  "5",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, int64(5)).Return(&subscription.ApprovalResult{
					Kind:    subscription.ApprovalRenewed,
					Payment: &models.Payment{Key: 5, Status: models.StatusPayed},
				}, fmt.Errorf("op: %w", &subscription.RenewalError{
					PaymentKey: 5, ActiveKey: 3, Months: 2, Err: errors.New("conn reset"),
				}))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `extend payment 3 by 2 months via POST /api/v1/payments/3/extend`,
		},
		{
			name: "store failure",
			key:  "4",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, int64(4)).Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not approve payment`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/payments/"+tt.key+"/approve", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("key", tt.key)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
