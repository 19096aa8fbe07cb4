package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalString_SortsKeys(t *testing.T) {
	got := canonicalString(map[string]string{
		"currency":    "PLN",
		"amount":      "15.00",
		"merchant_id": "m-1",
	})
	assert.Equal(t, "amount=15.00&currency=PLN&merchant_id=m-1", got)
}

func TestCanonicalString_Empty(t *testing.T) {
	assert.Equal(t, "", canonicalString(nil))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	params := map[string]string{
		"amount":     "15.00",
		"currency":   "PLN",
		"payment_id": "abc",
	}

	sig := sign("secret", params)
	assert.Len(t, sig, 64, "hex-encoded SHA-256")
	assert.True(t, verify("secret", params, sig))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	params := map[string]string{"amount": "15.00"}
	sig := sign("secret", params)
	assert.False(t, verify("other-secret", params, sig))
}

func TestVerify_RejectsTamperedParams(t *testing.T) {
	params := map[string]string{"amount": "15.00", "currency": "PLN"}
	sig := sign("secret", params)

	params["amount"] = "0.01"
	assert.False(t, verify("secret", params, sig))
}

func TestVerify_RejectsGarbageSignature(t *testing.T) {
	assert.False(t, verify("secret", map[string]string{"a": "b"}, "not-a-signature"))
}
