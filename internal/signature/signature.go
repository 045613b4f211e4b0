// ABOUTME: HMAC-SHA256 verification of inbound webhook payload signatures
// ABOUTME: Gates all webhook processing; nothing touches session state on a failed check

package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Header is the request header carrying the payload signature
const Header = "X-Hub-Signature-256"

const prefix = "sha256="

// Sign computes the hex HMAC-SHA256 of body under secret, without the
// header prefix. Used by tests and outbound webhook calls.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header of the form "sha256=<hex>" against the
// HMAC-SHA256 of the exact raw request body. Comparison is constant-time.
// A missing or malformed header fails verification.
func Verify(body []byte, signatureHeader, secret string) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}
	if !strings.HasPrefix(signatureHeader, prefix) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
