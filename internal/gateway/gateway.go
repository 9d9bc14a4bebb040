package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrPaymentRecordNotFound is returned when the provider has no record for a
// payment id.
var ErrPaymentRecordNotFound = errors.New("payment record not found")

// PreferenceGateway defines the interface to the checkout-preference payment
// provider. A preference is a provider-hosted checkout for one registration;
// the provider later reports payment results through webhooks, which are
// verified against GetPayment.
type PreferenceGateway interface {
	// CreatePreference creates a hosted checkout preference
	CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error)

	// GetPayment retrieves the provider's record of a payment. This is the
	// source of truth during webhook reconciliation.
	GetPayment(ctx context.Context, paymentID string) (*PaymentRecord, error)

	// SearchByReference retrieves the most recent payment carrying the given
	// external reference. Used by the sweeper when no payment id was ever
	// recorded. Returns ErrPaymentRecordNotFound when nothing matches.
	SearchByReference(ctx context.Context, externalReference string) (*PaymentRecord, error)

	// Name returns the gateway name
	Name() string
}

// PreferenceRequest represents a request to create a checkout preference
type PreferenceRequest struct {
	Title      string
	Quantity   int
	UnitPrice  float64
	CurrencyID string

	// ExternalReference correlates the provider's payment back to the
	// registration that created it.
	ExternalReference string

	PayerEmail      string
	NotificationURL string
	BackURLs        BackURLs
}

// BackURLs are the redirect targets after a hosted checkout
type BackURLs struct {
	Success string
	Failure string
	Pending string
}

// Preference represents a created checkout preference
type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

// PaymentRecord represents the provider's view of a payment
type PaymentRecord struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount float64
	DateCreated       time.Time
	DateLastUpdated   time.Time
}
