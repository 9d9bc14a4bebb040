package repository

import (
	"context"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// EventRepository is the read side of the events table plus the two columns
// the payment integrations are allowed to touch.
type EventRepository interface {
	// GetByID retrieves an event. Returns nil when no event matches.
	GetByID(ctx context.Context, id int64) (*domain.Event, error)

	// SetStripeProduct links a stripe product to an event
	SetStripeProduct(ctx context.Context, id int64, productID string) error

	// SetPrice persists the configured price in cents for one modality
	SetPrice(ctx context.Context, id int64, modality domain.Modality, amount int64) error
}
