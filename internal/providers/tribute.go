package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// ProviderTribute идентификатор провайдера Tribute.
const ProviderTribute = "tribute"

// Tribute присылает два события: new_subscription и cancelled_subscription.
// Подпись — HMAC-SHA256 тела запроса ключом API, hex в заголовке trbt-signature.
// Сумма приходит в минорных единицах валюты.
type Tribute struct {
	apiKey string
}

// NewTribute создаёт верификатор Tribute.
func NewTribute(apiKey string) *Tribute {
	return &Tribute{apiKey: apiKey}
}

// Provider реализует Verifier.
func (t *Tribute) Provider() string { return ProviderTribute }

type tributePayload struct {
	Name    string `json:"name"`
	Payload struct {
		TelegramUserID int64       `json:"telegram_user_id"`
		Period         string      `json:"period"`
		Amount         json.Number `json:"amount"`
		Price          json.Number `json:"price"`
		Currency       string      `json:"currency"`
		EventID        string      `json:"event_id"`
		PaymentID      string      `json:"payment_id"`
		SubscriptionID json.Number `json:"subscription_id"`
	} `json:"payload"`
}

// Verify реализует Verifier.
func (t *Tribute) Verify(body []byte, headers http.Header) (*Notification, error) {
	signature := headers.Get("trbt-signature")
	if signature == "" {
		return nil, ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(t.apiKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return nil, ErrBadSignature
	}

	var payload tributePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.Payload.TelegramUserID == 0 {
		return nil, fmt.Errorf("%w: missing telegram_user_id", ErrMalformed)
	}

	switch payload.Name {
	case "new_subscription":
		return t.paymentNotification(body, payload)
	case "cancelled_subscription":
		return &Notification{Kind: KindCancellation, UserID: payload.Payload.TelegramUserID}, nil
	default:
		return &Notification{Kind: KindIgnored, Reason: "unsupported event " + payload.Name}, nil
	}
}

func (t *Tribute) paymentNotification(body []byte, payload tributePayload) (*Notification, error) {
	raw := payload.Payload.Amount
	if raw == "" {
		raw = payload.Payload.Price
	}
	amount := decimal.Zero
	if raw != "" {
		minor, err := decimal.NewFromString(raw.String())
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount %q", ErrMalformed, raw)
		}
		// Tribute присылает сумму в копейках/центах.
		amount = minor.Div(decimal.NewFromInt(100)).Round(2)
	}

	currency := strings.ToUpper(payload.Payload.Currency)
	if currency == "" {
		currency = "RUB"
	}

	providerPaymentID := payload.Payload.EventID
	if providerPaymentID == "" {
		providerPaymentID = payload.Payload.PaymentID
	}
	if providerPaymentID == "" {
		// Стабильный запасной идентификатор: subscription_id плюс хэш тела.
		subID := payload.Payload.SubscriptionID.String()
		if subID == "" {
			subID = "sub"
		}
		providerPaymentID = subID + ":" + payloadHash(body)[:16]
	}

	return &Notification{
		Kind: KindPayment,
		Event: &models.PaymentEvent{
			Provider:          ProviderTribute,
			ProviderPaymentID: providerPaymentID,
			UserID:            payload.Payload.TelegramUserID,
			Amount:            amount,
			Currency:          currency,
			Months:            tributePeriodMonths(payload.Payload.Period),
			PayloadHash:       payloadHash(body),
			Status:            models.PaymentReceived,
		},
	}, nil
}

// tributePeriodMonths переводит строку периода Tribute в количество месяцев.
func tributePeriodMonths(period string) int {
	switch strings.ToLower(period) {
	case "quarterly", "3-month", "3months", "3-months", "q":
		return 3
	case "halfyearly":
		return 6
	case "yearly", "annual", "y":
		return 12
	default:
		return 1
	}
}
