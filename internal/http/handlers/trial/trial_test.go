package trial

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/artembakhtin/subscription-ledger/internal/models"
	"github.com/artembakhtin/subscription-ledger/internal/services/accountant"
)

// MockService реализует интерфейс trial.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) GrantTrial(ctx context.Context, userID int64, referredBy *int64) (*models.SubscriptionSnapshot, error) {
	args := m.Called(ctx, userID, referredBy)
	if res := args.Get(0); res != nil {
		return res.(*models.SubscriptionSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestTrialHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное начисление триала",
			body: `{"user_id": 42}`,
			setupMock: func(m *MockService) {
				m.On("GrantTrial", mock.Anything, int64(42), (*int64)(nil)).Return(&models.SubscriptionSnapshot{
					UserID:  42,
					EndDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
					Status:  models.StatusTrial,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name: "триал с реферером",
			body: `{"user_id": 42, "referred_by": 7}`,
			setupMock: func(m *MockService) {
				m.On("GrantTrial", mock.Anything, int64(42), mock.MatchedBy(func(r *int64) bool {
					return r != nil && *r == 7
				})).Return(&models.SubscriptionSnapshot{
					UserID:  42,
					EndDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
					Status:  models.StatusTrial,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{user_id}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "отсутствует user_id",
			body:           `{}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field UserID is a required field`,
		},
		{
			name: "триал уже использован",
			body: `{"user_id": 42}`,
			setupMock: func(m *MockService) {
				m.On("GrantTrial", mock.Anything, int64(42), (*int64)(nil)).Return(nil, accountant.ErrTrialAlreadyGranted)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"trial already granted"`,
		},
		{
			name: "ошибка сервиса",
			body: `{"user_id": 42}`,
			setupMock: func(m *MockService) {
				m.On("GrantTrial", mock.Anything, int64(42), (*int64)(nil)).Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not grant trial"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/internal/trial", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
