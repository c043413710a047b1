package providers

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // схема подписи провайдера
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

// ProviderFreekassa идентификатор провайдера FreeKassa.
const ProviderFreekassa = "freekassa"

// Freekassa принимает form-encoded callback. Основная схема подписи —
// MD5 от строки "shopID:amount:secondSecret:orderID" в поле SIGN,
// запасная — HMAC-SHA256 тела запроса ключом API.
type Freekassa struct {
	shopID       string
	apiKey       string
	secondSecret string
}

// NewFreekassa создаёт верификатор FreeKassa.
func NewFreekassa(shopID, apiKey, secondSecret string) *Freekassa {
	return &Freekassa{shopID: shopID, apiKey: apiKey, secondSecret: secondSecret}
}

// Provider реализует Verifier.
func (f *Freekassa) Provider() string { return ProviderFreekassa }

// Verify реализует Verifier.
func (f *Freekassa) Verify(body []byte, _ http.Header) (*Notification, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	signature := values.Get("SIGN")
	if signature == "" {
		signature = values.Get("signature")
	}
	if signature == "" {
		return nil, ErrBadSignature
	}

	orderID := values.Get("MERCHANT_ORDER_ID")
	amountStr := values.Get("AMOUNT")
	if orderID == "" || amountStr == "" {
		return nil, fmt.Errorf("%w: missing order id or amount", ErrMalformed)
	}

	if !f.validSignature(orderID, amountStr, signature, body) {
		return nil, ErrBadSignature
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrMalformed, amountStr)
	}

	userID, err := strconv.ParseInt(values.Get("us_user_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad us_user_id", ErrMalformed)
	}
	months, err := strconv.Atoi(values.Get("us_months"))
	if err != nil || months <= 0 {
		return nil, fmt.Errorf("%w: bad us_months", ErrMalformed)
	}

	providerPaymentID := values.Get("intid")
	if providerPaymentID == "" {
		providerPaymentID = orderID
	}

	currency := strings.ToUpper(values.Get("CUR_ID"))
	if currency == "" {
		currency = "RUB"
	}

	return &Notification{
		Kind: KindPayment,
		Event: &models.PaymentEvent{
			Provider:          ProviderFreekassa,
			ProviderPaymentID: providerPaymentID,
			UserID:            userID,
			Amount:            amount.Round(2),
			Currency:          currency,
			Months:            months,
			PayloadHash:       payloadHash(body),
			Status:            models.PaymentReceived,
		},
	}, nil
}

func (f *Freekassa) validSignature(orderID, amount, signature string, body []byte) bool {
	source := fmt.Sprintf("%s:%s:%s:%s", f.shopID, amount, f.secondSecret, orderID)
	sum := md5.Sum([]byte(source)) //nolint:gosec
	expected := hex.EncodeToString(sum[:])
	if hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return true
	}

	mac := hmac.New(sha256.New, []byte(f.apiKey))
	mac.Write(body)
	alt := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(alt), []byte(strings.ToLower(signature)))
}
