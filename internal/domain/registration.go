package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Modality is the fulfillment mode of a registration
type Modality string

const (
	// ModalityOnsite is capacity-limited by the event's onsite slot count
	ModalityOnsite Modality = "presencial"
	// ModalityOnline has no capacity constraint
	ModalityOnline Modality = "online"
)

// IsValid returns true if the modality is a known value
func (m Modality) IsValid() bool {
	return m == ModalityOnsite || m == ModalityOnline
}

// PaymentStatus represents the payment lifecycle state of a registration
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsTerminal returns true if the status is absorbing: once entered, only an
// administrative override may leave it
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected || s == PaymentStatusCancelled
}

// IsValid returns true if the status is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCancelled:
		return true
	}
	return false
}

// CountsAgainstCapacity returns true if a registration in this status consumes
// an onsite slot. Rejected and cancelled registrations free their slot.
func (s PaymentStatus) CountsAgainstCapacity() bool {
	return s == PaymentStatusPending || s == PaymentStatusApproved
}

// MapProviderStatus maps the payment provider's status string onto the
// internal enum. Unknown and in-flight provider states collapse to pending.
func MapProviderStatus(providerStatus string) PaymentStatus {
	switch providerStatus {
	case "approved":
		return PaymentStatusApproved
	case "rejected":
		return PaymentStatusRejected
	case "cancelled":
		return PaymentStatusCancelled
	default:
		// pending, in_process, in_mediation, anything unrecognized
		return PaymentStatusPending
	}
}

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRegistrationDeleted  = errors.New("registration is deleted")
	ErrNotDeleted           = errors.New("registration is not deleted")
	ErrInvalidModality      = errors.New("invalid modality")
	ErrStatusFinal          = errors.New("payment status is final")
	ErrStaleNotification    = errors.New("notification is older than last applied update")
	ErrInvalidReference     = errors.New("invalid external reference")
)

// Registration is a persisted form submission tied to one event and one
// payment lifecycle.
type Registration struct {
	ID      int64          `json:"id"`
	EventID int64          `json:"event_id"`
	Payload map[string]any `json:"form_data"`

	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentID     string        `json:"payment_id,omitempty"`
	PreferenceID  string        `json:"preference_id,omitempty"`

	PaymentCreatedAt *time.Time `json:"payment_created_at,omitempty"`
	PaymentUpdatedAt *time.Time `json:"payment_updated_at,omitempty"`

	// ProviderUpdatedAt is the provider-side last-update timestamp of the most
	// recently applied reconciliation. Notifications older than this are stale.
	ProviderUpdatedAt *time.Time `json:"provider_updated_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// NewRegistration creates a registration in pending state
func NewRegistration(eventID int64, payload map[string]any) (*Registration, error) {
	if eventID <= 0 {
		return nil, errors.New("event_id is required")
	}
	if payload == nil {
		payload = make(map[string]any)
	}

	now := time.Now()
	return &Registration{
		EventID:          eventID,
		Payload:          payload,
		PaymentStatus:    PaymentStatusPending,
		PaymentCreatedAt: &now,
		PaymentUpdatedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Modality returns the modality recorded in the registration payload
func (r *Registration) Modality() Modality {
	if v, ok := r.Payload["modality"].(string); ok {
		return Modality(v)
	}
	return ""
}

// Email returns the contact email recorded in the registration payload
func (r *Registration) Email() string {
	if v, ok := r.Payload["email"].(string); ok {
		return v
	}
	return ""
}

// IsDeleted returns true if the registration is soft-deleted
func (r *Registration) IsDeleted() bool {
	return r.DeletedAt != nil
}

// ApplyReconciliation applies a reconciled provider state to the registration.
// It returns true when the registration changed. The update is applied only
// when the mapped status differs from the current one or no payment id has
// been recorded yet, which makes webhook redelivery a no-op.
//
// A terminal status is absorbing: a differing status arriving afterwards is
// rejected with ErrStatusFinal. A notification whose provider timestamp is
// older than the last applied one is rejected with ErrStaleNotification, so
// out-of-order delivery cannot overwrite newer state.
func (r *Registration) ApplyReconciliation(status PaymentStatus, paymentID string, providerUpdatedAt time.Time) (bool, error) {
	if !status.IsValid() {
		return false, fmt.Errorf("invalid payment status %q", status)
	}

	if r.ProviderUpdatedAt != nil && providerUpdatedAt.Before(*r.ProviderUpdatedAt) {
		return false, ErrStaleNotification
	}

	if status == r.PaymentStatus && r.PaymentID != "" {
		// Redelivery of an already applied state.
		return false, nil
	}

	if r.PaymentStatus.IsTerminal() && status != r.PaymentStatus {
		return false, ErrStatusFinal
	}

	now := time.Now()
	r.PaymentStatus = status
	r.PaymentID = paymentID
	r.PaymentUpdatedAt = &now
	r.ProviderUpdatedAt = &providerUpdatedAt
	r.UpdatedAt = now
	return true, nil
}

// OverridePayment sets the payment status and id unconditionally. This is the
// administrative escape hatch and is the only way out of a terminal status.
func (r *Registration) OverridePayment(status PaymentStatus, paymentID string) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid payment status %q", status)
	}
	now := time.Now()
	r.PaymentStatus = status
	if paymentID != "" {
		r.PaymentID = paymentID
	}
	r.PaymentUpdatedAt = &now
	r.UpdatedAt = now
	return nil
}

// ExternalReference builds the correlation reference passed to the payment
// provider and echoed back in its records.
func (r *Registration) ExternalReference() string {
	return fmt.Sprintf("form-%d-%s", r.ID, r.Modality())
}

// ParseExternalReference extracts the registration id from a correlation
// reference of the form "form-<id>-<modality>".
func ParseExternalReference(ref string) (int64, error) {
	parts := strings.SplitN(ref, "-", 3)
	if len(parts) < 2 || parts[0] != "form" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return id, nil
}
