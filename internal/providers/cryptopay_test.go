package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cryptoToken = "12345:AAbbCCdd"

func signCryptoPay(body []byte) http.Header {
	secret := sha256.Sum256([]byte(cryptoToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(body)
	h := http.Header{}
	h.Set("crypto-pay-api-signature", hex.EncodeToString(mac.Sum(nil)))
	return h
}

func TestCryptoPay_Verify_InvoicePaid(t *testing.T) {
	body := []byte(`{
		"update_type": "invoice_paid",
		"payload": {
			"invoice_id": 1001,
			"asset": "usdt",
			"amount": "5.5",
			"paid_amount": "5.5",
			"payload": "42:3"
		}
	}`)
	verifier := NewCryptoPay(cryptoToken)

	notification, err := verifier.Verify(body, signCryptoPay(body))

	require.NoError(t, err)
	assert.Equal(t, KindPayment, notification.Kind)
	assert.Equal(t, "1001", notification.Event.ProviderPaymentID)
	assert.Equal(t, int64(42), notification.Event.UserID)
	assert.True(t, notification.Event.Amount.Equal(decimal.RequireFromString("5.5")))
	assert.Equal(t, "USDT", notification.Event.Currency)
	assert.Equal(t, 3, notification.Event.Months)
}

func TestCryptoPay_Verify_OtherUpdatesIgnored(t *testing.T) {
	body := []byte(`{"update_type": "invoice_expired", "payload": {"invoice_id": 1}}`)
	verifier := NewCryptoPay(cryptoToken)

	notification, err := verifier.Verify(body, signCryptoPay(body))

	require.NoError(t, err)
	assert.Equal(t, KindIgnored, notification.Kind)
}

func TestCryptoPay_Verify_BadSignature(t *testing.T) {
	body := []byte(`{"update_type": "invoice_paid", "payload": {"invoice_id": 1, "payload": "42:1", "amount": "1"}}`)
	verifier := NewCryptoPay(cryptoToken)

	h := http.Header{}
	h.Set("crypto-pay-api-signature", "deadbeef")
	_, err := verifier.Verify(body, h)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = verifier.Verify(body, http.Header{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestCryptoPay_Verify_BadInvoicePayload(t *testing.T) {
	verifier := NewCryptoPay(cryptoToken)

	tests := []struct {
		name    string
		payload string
	}{
		{"no separator", "42"},
		{"bad user id", "abc:1"},
		{"zero months", "42:0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{"update_type": "invoice_paid", "payload": {"invoice_id": 1, "amount": "1", "payload": "` + tt.payload + `"}}`)
			_, err := verifier.Verify(body, signCryptoPay(body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
