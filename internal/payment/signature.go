package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks the signature the paying client relays after
// completing checkout: HMAC-SHA256 over "<gatewayOrderID>|<paymentID>" with
// the key secret. Comparison is constant-time and any mismatch fails closed.
func (c *Client) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := sign(c.cfg.KeySecret, []byte(gatewayOrderID+"|"+paymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the gateway's server-to-server signature:
// HMAC-SHA256 over the raw request body with the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" {
		return false
	}
	expected := sign(c.cfg.WebhookSecret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
