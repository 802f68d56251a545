package payment

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/config"
)

func newLiveClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(config.GatewayConfig{
		KeyID:         "key_test",
		KeySecret:     "merchant_secret",
		WebhookSecret: "webhook_secret",
		BaseURL:       "https://gateway.invalid/v1",
		Timeout:       time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New client: %v", err)
	}
	return client
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := newLiveClient(t)

	// HMAC-SHA256("order_abc123|pay_xyz789", "merchant_secret")
	validSig := "7961351fab2ae79c00b593305c273c2607ebf0a89c0b18cd2fc3a01128c49301"

	if !client.VerifyPaymentSignature("order_abc123", "pay_xyz789", validSig) {
		t.Error("Valid signature should verify")
	}

	cases := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
	}{
		{"tampered order id", "order_abc124", "pay_xyz789", validSig},
		{"tampered payment id", "order_abc123", "pay_xyz780", validSig},
		{"tampered signature", "order_abc123", "pay_xyz789", "7961351fab2ae79c00b593305c273c2607ebf0a89c0b18cd2fc3a01128c49300"},
		{"truncated signature", "order_abc123", "pay_xyz789", validSig[:32]},
		{"empty signature", "order_abc123", "pay_xyz789", ""},
		{"empty order id", "", "pay_xyz789", validSig},
		{"empty payment id", "order_abc123", "", validSig},
	}

	for _, tc := range cases {
		if client.VerifyPaymentSignature(tc.orderID, tc.paymentID, tc.signature) {
			t.Errorf("%s: should not verify", tc.name)
		}
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := newLiveClient(t)

	body := []byte(`{"event":"payment.captured"}`)
	// HMAC-SHA256 of the body with "webhook_secret"
	validSig := "63482aecf393ec15e418daab94dffe6cd7a1ddeec5ade268106920e9f1c8363d"

	if !client.VerifyWebhookSignature(body, validSig) {
		t.Error("Valid webhook signature should verify")
	}

	if client.VerifyWebhookSignature([]byte(`{"event":"payment.captured" }`), validSig) {
		t.Error("Tampered body should not verify")
	}
	if client.VerifyWebhookSignature(body, "deadbeef") {
		t.Error("Wrong signature should not verify")
	}
	if client.VerifyWebhookSignature(nil, validSig) {
		t.Error("Empty body should not verify")
	}
	if client.VerifyWebhookSignature(body, "") {
		t.Error("Empty signature should not verify")
	}
}

func TestWebhookAndPaymentSecretsAreIndependent(t *testing.T) {
	client := newLiveClient(t)

	// A signature minted with the payment key secret must not validate a
	// webhook body, and vice versa.
	body := []byte("order_abc123|pay_xyz789")
	paymentSig := "7961351fab2ae79c00b593305c273c2607ebf0a89c0b18cd2fc3a01128c49301"

	if client.VerifyWebhookSignature(body, paymentSig) {
		t.Error("Payment-secret signature should not validate a webhook")
	}
}
