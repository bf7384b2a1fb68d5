package coinbase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// verifySignature checks the hex HMAC-SHA256 of body against sig
func (p *Provider) verifySignature(sig string, body []byte) bool {
	if len(p.webhookSecret) == 0 {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimSpace(sig))
	if err != nil || len(expected) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, p.webhookSecret)
	if _, err := mac.Write(body); err != nil {
		return false
	}
	return hmac.Equal(expected, mac.Sum(nil))
}

// Sign returns the signature Coinbase Commerce would send for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
