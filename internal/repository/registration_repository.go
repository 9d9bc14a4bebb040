package repository

import (
	"context"
	"time"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// RegistrationRepository defines persistence operations over registrations
type RegistrationRepository interface {
	// Create persists a new registration and assigns its id
	Create(ctx context.Context, reg *domain.Registration) error

	// CreateWithCapacity persists a new onsite registration only while fewer
	// than limit active onsite registrations exist for the event. The count
	// and the insert run in one serialized unit, so two racing submissions
	// cannot both squeeze past the limit. Returns domain.ErrCapacityExceeded
	// when the limit is reached.
	CreateWithCapacity(ctx context.Context, reg *domain.Registration, limit int) error

	// GetByID retrieves a registration. Soft-deleted rows are only returned
	// when includeDeleted is set.
	GetByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Registration, error)

	// GetByPaymentID retrieves the registration carrying the given external
	// payment id
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Registration, error)

	// List retrieves registrations newest first, excluding soft-deleted rows
	List(ctx context.Context, page, limit int) ([]*domain.Registration, int, error)

	// ListByEvent retrieves an event's registrations newest first, excluding
	// soft-deleted rows
	ListByEvent(ctx context.Context, eventID int64, page, limit int) ([]*domain.Registration, int, error)

	// ListStalePending retrieves pending registrations created before cutoff
	// that have a preference but never received a payment id. These are the
	// candidates for sweeper reconciliation.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error)

	// CountActiveByModality counts non-deleted registrations of the given
	// modality whose payment status still consumes a slot
	CountActiveByModality(ctx context.Context, eventID int64, modality domain.Modality) (int, error)

	// Update persists the mutable payment fields of a registration
	Update(ctx context.Context, reg *domain.Registration) error

	// SetPreference records the provider-side preference id created for the
	// registration
	SetPreference(ctx context.Context, id int64, preferenceID string) error

	// Reconcile loads the registration under a per-row lock, applies the
	// given function and persists the result when it reports a change.
	// Concurrent reconciliations of the same registration are serialized.
	Reconcile(ctx context.Context, id int64, apply func(*domain.Registration) (bool, error)) (*domain.Registration, error)

	// SoftDelete marks a registration deleted without removing the row
	SoftDelete(ctx context.Context, id int64) error

	// Restore clears the soft-delete marker. Returns domain.ErrNotDeleted if
	// the registration is not deleted.
	Restore(ctx context.Context, id int64) error
}
