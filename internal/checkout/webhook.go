package checkout

import (
	"encoding/json"
	"fmt"
)

// Gateway webhook event types handled by the reconciliation engine. Other
// event types are acknowledged and ignored.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// webhookEnvelope mirrors the gateway's push payload: the event name plus a
// nested payment entity carrying the gateway order id, the payment id and an
// optional error description.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Error   *struct {
		Description string `json:"description"`
	} `json:"error"`
}

func (e paymentEntity) errorDescription() string {
	if e.Error != nil && e.Error.Description != "" {
		return e.Error.Description
	}
	return "payment failed"
}

func parseWebhook(body []byte) (*webhookEnvelope, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	if envelope.Event == "" {
		return nil, fmt.Errorf("parse webhook payload: missing event")
	}
	return &envelope, nil
}
