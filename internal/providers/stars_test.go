package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const starsSecret = "internal-secret"

func starsHeaders(secret string) http.Header {
	h := http.Header{}
	h.Set("X-Internal-Secret", secret)
	return h
}

func TestStars_Verify_Confirmation(t *testing.T) {
	body := []byte(`{
		"telegram_payment_charge_id": "stars-charge-1",
		"user_id": 42,
		"stars_amount": 250,
		"months": 1
	}`)
	verifier := NewStars(starsSecret)

	notification, err := verifier.Verify(body, starsHeaders(starsSecret))

	require.NoError(t, err)
	assert.Equal(t, KindPayment, notification.Kind)
	assert.Equal(t, "stars-charge-1", notification.Event.ProviderPaymentID)
	assert.Equal(t, int64(42), notification.Event.UserID)
	assert.Equal(t, "XTR", notification.Event.Currency)
}

func TestStars_Verify_WrongSecret(t *testing.T) {
	body := []byte(`{"telegram_payment_charge_id": "x", "user_id": 42, "months": 1}`)
	verifier := NewStars(starsSecret)

	_, err := verifier.Verify(body, starsHeaders("guess"))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = verifier.Verify(body, http.Header{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestStars_Verify_Malformed(t *testing.T) {
	verifier := NewStars(starsSecret)

	tests := []struct {
		name string
		body []byte
	}{
		{"missing charge id", []byte(`{"user_id": 42, "months": 1}`)},
		{"missing user id", []byte(`{"telegram_payment_charge_id": "x", "months": 1}`)},
		{"zero months", []byte(`{"telegram_payment_charge_id": "x", "user_id": 42, "months": 0}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.body, starsHeaders(starsSecret))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(NewStars(starsSecret), NewTribute("key"))

	v, err := registry.Get(ProviderStars)
	require.NoError(t, err)
	assert.Equal(t, ProviderStars, v.Provider())

	_, err = registry.Get("paypal")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
