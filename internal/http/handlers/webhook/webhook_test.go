package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/artembakhtin/subscription-ledger/internal/models"
	"github.com/artembakhtin/subscription-ledger/internal/providers"
	"github.com/artembakhtin/subscription-ledger/internal/services/ledger"
)

const (
	internalSecret = "internal-secret"
	tributeKey     = "tribute-api-key"
)

// MockService реализует интерфейс webhook.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Admit(ctx context.Context, event *models.PaymentEvent) (ledger.Result, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(ledger.Result), args.Error(1)
}

func (m *MockService) Cancel(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func signTribute(body string) string {
	mac := hmac.New(sha256.New, []byte(tributeKey))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	starsBody := `{"telegram_payment_charge_id": "charge-1", "user_id": 42, "stars_amount": 250, "months": 1}`
	cancelBody := `{"name": "cancelled_subscription", "payload": {"telegram_user_id": 42}}`
	ignoredBody := `{"name": "subscription_renewed_soon", "payload": {"telegram_user_id": 42}}`

	tests := []struct {
		name           string
		provider       string
		body           string
		headers        map[string]string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "неизвестный провайдер",
			provider:       "paypal",
			body:           "{}",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"unknown provider"`,
		},
		{
			name:           "неверная подпись",
			provider:       providers.ProviderStars,
			body:           starsBody,
			headers:        map[string]string{"X-Internal-Secret": "guess"},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `"error":"invalid signature"`,
		},
		{
			name:           "непригодное тело уведомления",
			provider:       providers.ProviderStars,
			body:           `{"user_id": 42, "months": 1}`,
			headers:        map[string]string{"X-Internal-Secret": internalSecret},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"malformed payload"`,
		},
		{
			name:     "платёж засчитан",
			provider: providers.ProviderStars,
			body:     starsBody,
			headers:  map[string]string{"X-Internal-Secret": internalSecret},
			setupMock: func(m *MockService) {
				m.On("Admit", mock.Anything, mock.Anything).Return(ledger.Credited, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"result":"credited"`,
		},
		{
			name:     "повторная доставка квитируется",
			provider: providers.ProviderStars,
			body:     starsBody,
			headers:  map[string]string{"X-Internal-Secret": internalSecret},
			setupMock: func(m *MockService) {
				m.On("Admit", mock.Anything, mock.Anything).Return(ledger.Duplicate, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"result":"duplicate"`,
		},
		{
			name:     "отклонённое событие зафиксировано",
			provider: providers.ProviderStars,
			body:     starsBody,
			headers:  map[string]string{"X-Internal-Secret": internalSecret},
			setupMock: func(m *MockService) {
				m.On("Admit", mock.Anything, mock.Anything).Return(ledger.Rejected, errors.New("credit failed"))
			},
			// Событие записано в леджер, провайдеру не нужно повторять доставку.
			expectedStatus: http.StatusOK,
			expectedBody:   `"result":"rejected"`,
		},
		{
			name:     "ошибка допуска события",
			provider: providers.ProviderStars,
			body:     starsBody,
			headers:  map[string]string{"X-Internal-Secret": internalSecret},
			setupMock: func(m *MockService) {
				m.On("Admit", mock.Anything, mock.Anything).Return(ledger.Result(""), errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"failed to process event"`,
		},
		{
			name:     "отмена подписки",
			provider: providers.ProviderTribute,
			body:     cancelBody,
			headers:  map[string]string{"trbt-signature": signTribute(cancelBody)},
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, int64(42)).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "нерелевантное событие квитируется",
			provider:       providers.ProviderTribute,
			body:           ignoredBody,
			headers:        map[string]string{"trbt-signature": signTribute(ignoredBody)},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			registry := providers.NewRegistry(
				providers.NewStars(internalSecret),
				providers.NewTribute(tributeKey),
			)
			handler := New(logger, registry, mockService)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/"+tt.provider, strings.NewReader(tt.body))
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("provider", tt.provider)
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
