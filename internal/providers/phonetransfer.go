package providers

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// ProviderPhoneTransfer идентификатор провайдера перевода по номеру телефона.
const ProviderPhoneTransfer = "phone_transfer"

// PhoneTransfer обрабатывает подтверждения ручных переводов по номеру
// телефона. Перевод подтверждает оператор, бот-поверхность передаёт
// подтверждение с внутренним секретом; идентификатором транзакции служит
// номер перевода, выданный пользователю при оформлении.
type PhoneTransfer struct {
	internalSecret string
}

// NewPhoneTransfer создаёт верификатор переводов по номеру телефона.
func NewPhoneTransfer(internalSecret string) *PhoneTransfer {
	return &PhoneTransfer{internalSecret: internalSecret}
}

// Provider реализует Verifier.
func (p *PhoneTransfer) Provider() string { return ProviderPhoneTransfer }

type phoneTransferConfirmation struct {
	TransferID  string          `json:"transfer_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Months      int             `json:"months"`
	ConfirmedBy string          `json:"confirmed_by"`
}

// Verify реализует Verifier.
func (p *PhoneTransfer) Verify(body []byte, headers http.Header) (*Notification, error) {
	secret := headers.Get("X-Internal-Secret")
	if secret == "" || !hmac.Equal([]byte(secret), []byte(p.internalSecret)) {
		return nil, ErrBadSignature
	}

	var confirmation phoneTransferConfirmation
	if err := json.Unmarshal(body, &confirmation); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if confirmation.TransferID == "" {
		return nil, fmt.Errorf("%w: missing transfer_id", ErrMalformed)
	}
	if confirmation.UserID == 0 || confirmation.Months <= 0 {
		return nil, fmt.Errorf("%w: missing user_id or months", ErrMalformed)
	}
	if confirmation.ConfirmedBy == "" {
		return nil, fmt.Errorf("%w: missing confirmed_by", ErrMalformed)
	}

	currency := strings.ToUpper(confirmation.Currency)
	if currency == "" {
		currency = "RUB"
	}

	return &Notification{
		Kind: KindPayment,
		Event: &models.PaymentEvent{
			Provider:          ProviderPhoneTransfer,
			ProviderPaymentID: confirmation.TransferID,
			UserID:            confirmation.UserID,
			Amount:            confirmation.Amount,
			Currency:          currency,
			Months:            confirmation.Months,
			PayloadHash:       payloadHash(body),
			Status:            models.PaymentReceived,
		},
	}, nil
}
