package events

import (
	"strconv"
	"time"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// Topic names for registration events
const (
	TopicPaymentStatus = "registration.payment-status"
)

// PaymentStatusEvent is published whenever a registration's payment status
// changes, whether through webhook reconciliation or an administrative
// override.
type PaymentStatusEvent struct {
	EventType      string               `json:"event_type"`
	RegistrationID int64                `json:"registration_id"`
	EventID        int64                `json:"event_id"`
	PaymentID      string               `json:"payment_id,omitempty"`
	PreviousStatus domain.PaymentStatus `json:"previous_status"`
	Status         domain.PaymentStatus `json:"status"`
	Modality       string               `json:"modality,omitempty"`
	Timestamp      time.Time            `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning. Events for one
// registration always land on the same partition, preserving their order.
func (e *PaymentStatusEvent) Key() string {
	return strconv.FormatInt(e.RegistrationID, 10)
}

// NewPaymentStatusEvent builds the event for a status transition
func NewPaymentStatusEvent(reg *domain.Registration, previous domain.PaymentStatus) *PaymentStatusEvent {
	return &PaymentStatusEvent{
		EventType:      "payment_status_changed",
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		PaymentID:      reg.PaymentID,
		PreviousStatus: previous,
		Status:         reg.PaymentStatus,
		Modality:       string(reg.Modality()),
		Timestamp:      time.Now(),
	}
}
