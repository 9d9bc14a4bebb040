package domain

import (
	"errors"
	"time"
)

// DefaultOnsiteSlotLimit is used when an event has no configured limit
const DefaultOnsiteSlotLimit = 36

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrPriceNotConfigured  = errors.New("no price configured for this modality")
	ErrCapacityExceeded    = errors.New("onsite capacity exceeded")
	ErrNoStripeIntegration = errors.New("event has no stripe integration")
)

// Event is the read-only projection of an event referenced by registrations.
// The registration flow never mutates it except for the stripe product link.
type Event struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Address          string    `json:"address,omitempty"`
	PriceValueOnline *int64    `json:"price_value_online,omitempty"`
	PriceValueOnsite *int64    `json:"price_value_onsite,omitempty"`
	LimitOnsiteSlots *int      `json:"limit_onsite_slots,omitempty"`
	StripeProductID  string    `json:"stripe_product_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OnsiteSlotLimit returns the configured onsite slot limit, falling back to
// DefaultOnsiteSlotLimit when unset.
func (e *Event) OnsiteSlotLimit() int {
	if e.LimitOnsiteSlots == nil || *e.LimitOnsiteSlots < 0 {
		return DefaultOnsiteSlotLimit
	}
	return *e.LimitOnsiteSlots
}

// PriceFor returns the configured price in cents for the given modality.
// Returns ErrPriceNotConfigured when the event has no price for it.
func (e *Event) PriceFor(modality Modality) (int64, error) {
	var price *int64
	switch modality {
	case ModalityOnsite:
		price = e.PriceValueOnsite
	case ModalityOnline:
		price = e.PriceValueOnline
	default:
		return 0, ErrInvalidModality
	}
	if price == nil || *price <= 0 {
		return 0, ErrPriceNotConfigured
	}
	return *price, nil
}
