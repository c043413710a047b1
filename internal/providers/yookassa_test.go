package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yooSecret = "yookassa-secret"

func signYookassa(body []byte) http.Header {
	mac := hmac.New(sha256.New, []byte(yooSecret))
	mac.Write(body)
	h := http.Header{}
	h.Set("X-Api-Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return h
}

func TestYookassa_Verify_PaymentSucceeded(t *testing.T) {
	body := []byte(`{
		"event": "payment.succeeded",
		"object": {
			"id": "2e5b3a2e",
			"status": "succeeded",
			"amount": {"value": "450.00", "currency": "rub"},
			"metadata": {"user_id": "42", "months": "6"}
		}
	}`)
	verifier := NewYookassa(yooSecret)

	notification, err := verifier.Verify(body, signYookassa(body))

	require.NoError(t, err)
	assert.Equal(t, KindPayment, notification.Kind)
	assert.Equal(t, "2e5b3a2e", notification.Event.ProviderPaymentID)
	assert.Equal(t, int64(42), notification.Event.UserID)
	assert.True(t, notification.Event.Amount.Equal(decimal.RequireFromString("450.00")))
	assert.Equal(t, "RUB", notification.Event.Currency)
	assert.Equal(t, 6, notification.Event.Months)
}

func TestYookassa_Verify_OtherEventsIgnored(t *testing.T) {
	body := []byte(`{"event": "payment.canceled", "object": {"id": "x"}}`)
	verifier := NewYookassa(yooSecret)

	notification, err := verifier.Verify(body, signYookassa(body))

	require.NoError(t, err)
	assert.Equal(t, KindIgnored, notification.Kind)
}

func TestYookassa_Verify_BadSignature(t *testing.T) {
	body := []byte(`{"event": "payment.succeeded", "object": {"id": "x"}}`)
	verifier := NewYookassa(yooSecret)

	h := http.Header{}
	h.Set("X-Api-Signature", "bm90LWEtc2lnbmF0dXJl")
	_, err := verifier.Verify(body, h)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = verifier.Verify(body, http.Header{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestYookassa_Verify_Malformed(t *testing.T) {
	verifier := NewYookassa(yooSecret)

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte(`{{{`)},
		{"missing payment id", []byte(`{"event": "payment.succeeded", "object": {"amount": {"value": "1.00"}, "metadata": {"user_id": "42", "months": "1"}}}`)},
		{"missing metadata", []byte(`{"event": "payment.succeeded", "object": {"id": "x", "amount": {"value": "1.00"}}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.body, signYookassa(tt.body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
