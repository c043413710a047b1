package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phoneTransferSecret = "internal-secret"

func phoneTransferHeaders(secret string) http.Header {
	h := http.Header{}
	h.Set("X-Internal-Secret", secret)
	return h
}

func TestPhoneTransfer_Verify_Confirmation(t *testing.T) {
	body := []byte(`{
		"transfer_id": "tr-2026-0815",
		"user_id": 42,
		"amount": "199.00",
		"currency": "rub",
		"months": 3,
		"confirmed_by": "operator_1"
	}`)
	verifier := NewPhoneTransfer(phoneTransferSecret)

	notification, err := verifier.Verify(body, phoneTransferHeaders(phoneTransferSecret))

	require.NoError(t, err)
	assert.Equal(t, KindPayment, notification.Kind)
	assert.Equal(t, ProviderPhoneTransfer, notification.Event.Provider)
	assert.Equal(t, "tr-2026-0815", notification.Event.ProviderPaymentID)
	assert.Equal(t, int64(42), notification.Event.UserID)
	assert.Equal(t, "199.00", notification.Event.Amount.StringFixed(2))
	assert.Equal(t, "RUB", notification.Event.Currency)
	assert.Equal(t, 3, notification.Event.Months)
}

func TestPhoneTransfer_Verify_DefaultCurrency(t *testing.T) {
	body := []byte(`{"transfer_id": "tr-1", "user_id": 42, "months": 1, "confirmed_by": "operator_1"}`)
	verifier := NewPhoneTransfer(phoneTransferSecret)

	notification, err := verifier.Verify(body, phoneTransferHeaders(phoneTransferSecret))

	require.NoError(t, err)
	assert.Equal(t, "RUB", notification.Event.Currency)
}

func TestPhoneTransfer_Verify_WrongSecret(t *testing.T) {
	body := []byte(`{"transfer_id": "tr-1", "user_id": 42, "months": 1, "confirmed_by": "operator_1"}`)
	verifier := NewPhoneTransfer(phoneTransferSecret)

	_, err := verifier.Verify(body, phoneTransferHeaders("guess"))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = verifier.Verify(body, http.Header{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestPhoneTransfer_Verify_Malformed(t *testing.T) {
	verifier := NewPhoneTransfer(phoneTransferSecret)

	tests := []struct {
		name string
		body []byte
	}{
		{"missing transfer id", []byte(`{"user_id": 42, "months": 1, "confirmed_by": "operator_1"}`)},
		{"missing user id", []byte(`{"transfer_id": "tr-1", "months": 1, "confirmed_by": "operator_1"}`)},
		{"zero months", []byte(`{"transfer_id": "tr-1", "user_id": 42, "months": 0, "confirmed_by": "operator_1"}`)},
		{"missing confirmed by", []byte(`{"transfer_id": "tr-1", "user_id": 42, "months": 1}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.body, phoneTransferHeaders(phoneTransferSecret))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
