package providers

import (
	"crypto/md5" //nolint:gosec // схема подписи провайдера
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fkShopID = "shop-1"
	fkAPIKey = "fk-api-key"
	fkSecret = "second-secret"
)

func freekassaBody(t *testing.T, orderID, amount, userID, months string) url.Values {
	t.Helper()
	source := fmt.Sprintf("%s:%s:%s:%s", fkShopID, amount, fkSecret, orderID)
	sum := md5.Sum([]byte(source)) //nolint:gosec
	values := url.Values{}
	values.Set("MERCHANT_ORDER_ID", orderID)
	values.Set("AMOUNT", amount)
	values.Set("intid", "int-"+orderID)
	values.Set("us_user_id", userID)
	values.Set("us_months", months)
	values.Set("SIGN", hex.EncodeToString(sum[:]))
	return values
}

func TestFreekassa_Verify_Payment(t *testing.T) {
	values := freekassaBody(t, "order-9", "299.00", "42", "3")
	verifier := NewFreekassa(fkShopID, fkAPIKey, fkSecret)

	notification, err := verifier.Verify([]byte(values.Encode()), http.Header{})

	require.NoError(t, err)
	assert.Equal(t, KindPayment, notification.Kind)
	assert.Equal(t, "int-order-9", notification.Event.ProviderPaymentID)
	assert.Equal(t, int64(42), notification.Event.UserID)
	assert.True(t, notification.Event.Amount.Equal(decimal.RequireFromString("299.00")))
	assert.Equal(t, 3, notification.Event.Months)
}

func TestFreekassa_Verify_BadSignature(t *testing.T) {
	values := freekassaBody(t, "order-9", "299.00", "42", "3")
	values.Set("SIGN", "0000")
	verifier := NewFreekassa(fkShopID, fkAPIKey, fkSecret)

	_, err := verifier.Verify([]byte(values.Encode()), http.Header{})

	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestFreekassa_Verify_SignatureCoversAmount(t *testing.T) {
	values := freekassaBody(t, "order-9", "299.00", "42", "3")
	// Подмена суммы после подписания делает подпись недействительной.
	values.Set("AMOUNT", "1.00")
	verifier := NewFreekassa(fkShopID, fkAPIKey, fkSecret)

	_, err := verifier.Verify([]byte(values.Encode()), http.Header{})

	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestFreekassa_Verify_Malformed(t *testing.T) {
	verifier := NewFreekassa(fkShopID, fkAPIKey, fkSecret)

	tests := []struct {
		name   string
		mutate func(url.Values)
	}{
		{"missing order id", func(v url.Values) { v.Del("MERCHANT_ORDER_ID") }},
		{"missing amount", func(v url.Values) { v.Del("AMOUNT") }},
		{"bad user id", func(v url.Values) { v.Set("us_user_id", "abc") }},
		{"zero months", func(v url.Values) { v.Set("us_months", "0") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := freekassaBody(t, "order-9", "299.00", "42", "3")
			tt.mutate(values)
			_, err := verifier.Verify([]byte(values.Encode()), http.Header{})
			assert.Error(t, err)
		})
	}
}

func TestFreekassa_Verify_FallbackOrderID(t *testing.T) {
	values := freekassaBody(t, "order-9", "299.00", "42", "3")
	values.Del("intid")
	verifier := NewFreekassa(fkShopID, fkAPIKey, fkSecret)

	notification, err := verifier.Verify([]byte(values.Encode()), http.Header{})

	require.NoError(t, err)
	assert.Equal(t, "order-9", notification.Event.ProviderPaymentID)
}
