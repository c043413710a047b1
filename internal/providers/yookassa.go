package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// ProviderYookassa идентификатор провайдера ЮKassa.
const ProviderYookassa = "yookassa"

// Yookassa присылает JSON-уведомления, подписанные HMAC-SHA256 тела запроса
// в base64 в заголовке X-Api-Signature. Начисление происходит только
// по событию payment.succeeded.
type Yookassa struct {
	webhookSecret string
}

// NewYookassa создаёт верификатор ЮKassa.
func NewYookassa(webhookSecret string) *Yookassa {
	return &Yookassa{webhookSecret: webhookSecret}
}

// Provider реализует Verifier.
func (y *Yookassa) Provider() string { return ProviderYookassa }

type yookassaPayload struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// Verify реализует Verifier.
func (y *Yookassa) Verify(body []byte, headers http.Header) (*Notification, error) {
	signature := headers.Get("X-Api-Signature")
	if signature == "" {
		return nil, ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(y.webhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrBadSignature
	}

	var payload yookassaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if strings.ToLower(payload.Event) != "payment.succeeded" {
		return &Notification{Kind: KindIgnored, Reason: "event " + payload.Event}, nil
	}
	if payload.Object.ID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrMalformed)
	}

	amount, err := decimal.NewFromString(payload.Object.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrMalformed, payload.Object.Amount.Value)
	}

	userID, err := strconv.ParseInt(payload.Object.Metadata["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad metadata user_id", ErrMalformed)
	}
	months, err := strconv.Atoi(payload.Object.Metadata["months"])
	if err != nil || months <= 0 {
		return nil, fmt.Errorf("%w: bad metadata months", ErrMalformed)
	}

	return &Notification{
		Kind: KindPayment,
		Event: &models.PaymentEvent{
			Provider:          ProviderYookassa,
			ProviderPaymentID: payload.Object.ID,
			UserID:            userID,
			Amount:            amount.Round(2),
			Currency:          strings.ToUpper(payload.Object.Amount.Currency),
			Months:            months,
			PayloadHash:       payloadHash(body),
			Status:            models.PaymentReceived,
		},
	}, nil
}
