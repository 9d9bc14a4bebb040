package dto

import "encoding/json"

// PaymentWebhookRequest represents the provider's webhook notification body.
// The provider also repeats the topic and id as query parameters; body fields
// win when both are present.
type PaymentWebhookRequest struct {
	Type   string `json:"type,omitempty"`
	Topic  string `json:"topic,omitempty"`
	Action string `json:"action,omitempty"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data,omitempty"`
	// Legacy notification format carries the id at the top level.
	ID json.Number `json:"id,omitempty"`
}

// IsPayment reports whether the notification is about a payment. Anything
// else (merchant orders, chargebacks, plan updates) is acknowledged and
// ignored.
func (r *PaymentWebhookRequest) IsPayment() bool {
	return r.Type == "payment" || r.Topic == "payment"
}

// PaymentID returns the payment id from the body, preferring the data object
// over the legacy top-level field. Returns "" when the body carries none.
func (r *PaymentWebhookRequest) PaymentID() string {
	if id := r.Data.ID.String(); id != "" {
		return id
	}
	return r.ID.String()
}

// WebhookAck is the acknowledgement body. Webhooks are always acknowledged so
// the provider stops retrying; failures are logged, not surfaced.
type WebhookAck struct {
	Received bool `json:"received"`
}
