package login

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/channel-paywall/internal/services/auth"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func TestLoginHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "valid credentials",
			body: `{"username":"admin","password":"s3cret"}`,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, "admin", "s3cret").Return("jwt-token", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"token":"jwt-token"`,
		},
		{
			name: "wrong password",
			body: `{"username":"admin","password":"nope"}`,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, "admin", "nope").Return("", fmt.Errorf("auth.Login: %w", auth.ErrInvalidCredentials))
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `incorrect user or password`,
		},
		{
			name:           "missing password",
			body:           `{"username":"admin"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Password is a required field`,
		},
		{
			name:           "invalid json",
			body:           `{`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name: "signing failure",
			body: `{"username":"admin","password":"s3cret"}`,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, "admin", "s3cret").Return("", errors.New("sign error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not generate token`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			New(logger, mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
