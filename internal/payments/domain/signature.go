package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "intentID|paymentID" under secret, the
// value a provider attaches to a completed payment.
func Sign(secret []byte, intentID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(intentID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature was produced by Sign. Malformed
// input yields false.
func VerifySignature(secret []byte, intentID, paymentID, signature string) bool {
	if len(secret) == 0 || intentID == "" || paymentID == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(intentID + "|" + paymentID))
	return hmac.Equal(got, mac.Sum(nil))
}
