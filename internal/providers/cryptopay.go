package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// ProviderCryptoPay идентификатор провайдера Crypto Pay.
const ProviderCryptoPay = "cryptopay"

// CryptoPay подписывает тело запроса HMAC-SHA256, где ключ — SHA-256 от
// API-токена приложения, hex в заголовке crypto-pay-api-signature.
// Начисление только по типу обновления invoice_paid.
type CryptoPay struct {
	secret [32]byte
}

// NewCryptoPay создаёт верификатор Crypto Pay из API-токена.
func NewCryptoPay(apiToken string) *CryptoPay {
	return &CryptoPay{secret: sha256.Sum256([]byte(apiToken))}
}

// Provider реализует Verifier.
func (c *CryptoPay) Provider() string { return ProviderCryptoPay }

type cryptoPayUpdate struct {
	UpdateType string `json:"update_type"`
	Payload    struct {
		InvoiceID  json.Number `json:"invoice_id"`
		Asset      string      `json:"asset"`
		Amount     string      `json:"amount"`
		PaidAmount string      `json:"paid_amount"`
		// Сквозной payload счёта в формате "userID:months".
		Payload string `json:"payload"`
	} `json:"payload"`
}

// Verify реализует Verifier.
func (c *CryptoPay) Verify(body []byte, headers http.Header) (*Notification, error) {
	signature := headers.Get("crypto-pay-api-signature")
	if signature == "" {
		return nil, ErrBadSignature
	}
	mac := hmac.New(sha256.New, c.secret[:])
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return nil, ErrBadSignature
	}

	var update cryptoPayUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if update.UpdateType != "invoice_paid" {
		return &Notification{Kind: KindIgnored, Reason: "update " + update.UpdateType}, nil
	}

	amountStr := update.Payload.PaidAmount
	if amountStr == "" {
		amountStr = update.Payload.Amount
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrMalformed, amountStr)
	}

	userID, months, err := parseInvoicePayload(update.Payload.Payload)
	if err != nil {
		return nil, err
	}

	invoiceID := update.Payload.InvoiceID.String()
	if invoiceID == "" {
		return nil, fmt.Errorf("%w: missing invoice_id", ErrMalformed)
	}

	return &Notification{
		Kind: KindPayment,
		Event: &models.PaymentEvent{
			Provider:          ProviderCryptoPay,
			ProviderPaymentID: invoiceID,
			UserID:            userID,
			Amount:            amount,
			Currency:          strings.ToUpper(update.Payload.Asset),
			Months:            months,
			PayloadHash:       payloadHash(body),
			Status:            models.PaymentReceived,
		},
	}, nil
}

func parseInvoicePayload(raw string) (int64, int, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: bad invoice payload %q", ErrMalformed, raw)
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad invoice payload %q", ErrMalformed, raw)
	}
	months, err := strconv.Atoi(parts[1])
	if err != nil || months <= 0 {
		return 0, 0, fmt.Errorf("%w: bad invoice payload %q", ErrMalformed, raw)
	}
	return userID, months, nil
}
