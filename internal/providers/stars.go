package providers

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// ProviderStars идентификатор провайдера Telegram Stars.
const ProviderStars = "telegram_stars"

// Stars обрабатывает внутриполосные подтверждения оплаты звёздами.
// Подлинность несёт сессия бота: бот-поверхность передаёт подтверждение
// с общим внутренним секретом в заголовке X-Internal-Secret, а событие
// приводится к тому же каноническому виду, что и внешние вебхуки.
type Stars struct {
	internalSecret string
}

// NewStars создаёт верификатор Telegram Stars.
func NewStars(internalSecret string) *Stars {
	return &Stars{internalSecret: internalSecret}
}

// Provider реализует Verifier.
func (s *Stars) Provider() string { return ProviderStars }

type starsConfirmation struct {
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	UserID                  int64  `json:"user_id"`
	StarsAmount             int64  `json:"stars_amount"`
	Months                  int    `json:"months"`
}

// Verify реализует Verifier.
func (s *Stars) Verify(body []byte, headers http.Header) (*Notification, error) {
	secret := headers.Get("X-Internal-Secret")
	if secret == "" || !hmac.Equal([]byte(secret), []byte(s.internalSecret)) {
		return nil, ErrBadSignature
	}

	var confirmation starsConfirmation
	if err := json.Unmarshal(body, &confirmation); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if confirmation.TelegramPaymentChargeID == "" {
		return nil, fmt.Errorf("%w: missing telegram_payment_charge_id", ErrMalformed)
	}
	if confirmation.UserID == 0 || confirmation.Months <= 0 {
		return nil, fmt.Errorf("%w: missing user_id or months", ErrMalformed)
	}

	return &Notification{
		Kind: KindPayment,
		Event: &models.PaymentEvent{
			Provider:          ProviderStars,
			ProviderPaymentID: confirmation.TelegramPaymentChargeID,
			UserID:            confirmation.UserID,
			Amount:            decimal.NewFromInt(confirmation.StarsAmount),
			Currency:          "XTR",
			Months:            confirmation.Months,
			PayloadHash:       payloadHash(body),
			Status:            models.PaymentReceived,
		},
	}, nil
}
