package checkout

import "testing"

func TestParseWebhookCaptured(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_123",
					"order_id": "order_abc"
				}
			}
		}
	}`)

	envelope, err := parseWebhook(body)
	if err != nil {
		t.Fatalf("Parse webhook: %v", err)
	}

	if envelope.Event != EventPaymentCaptured {
		t.Errorf("Expected %s, got %s", EventPaymentCaptured, envelope.Event)
	}
	entity := envelope.Payload.Payment.Entity
	if entity.ID != "pay_123" || entity.OrderID != "order_abc" {
		t.Errorf("Unexpected entity: %+v", entity)
	}
}

func TestParseWebhookFailedWithError(t *testing.T) {
	body := []byte(`{
		"event": "payment.failed",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_456",
					"order_id": "order_def",
					"error": {"description": "card declined"}
				}
			}
		}
	}`)

	envelope, err := parseWebhook(body)
	if err != nil {
		t.Fatalf("Parse webhook: %v", err)
	}

	if got := envelope.Payload.Payment.Entity.errorDescription(); got != "card declined" {
		t.Errorf("Expected card declined, got %q", got)
	}
}

func TestParseWebhookFailedWithoutError(t *testing.T) {
	body := []byte(`{
		"event": "payment.failed",
		"payload": {"payment": {"entity": {"id": "pay_789", "order_id": "order_ghi"}}}
	}`)

	envelope, err := parseWebhook(body)
	if err != nil {
		t.Fatalf("Parse webhook: %v", err)
	}

	if got := envelope.Payload.Payment.Entity.errorDescription(); got != "payment failed" {
		t.Errorf("Expected fallback description, got %q", got)
	}
}

func TestParseWebhookRejectsMalformed(t *testing.T) {
	if _, err := parseWebhook([]byte(`not json`)); err == nil {
		t.Error("Malformed JSON should fail")
	}
	if _, err := parseWebhook([]byte(`{}`)); err == nil {
		t.Error("Missing event should fail")
	}
}
