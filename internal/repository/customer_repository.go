package repository

import (
	"context"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// CustomerRepository defines persistence operations over checkout customers
type CustomerRepository interface {
	// Create persists a new customer and assigns its id
	Create(ctx context.Context, customer *domain.Customer) error

	// GetByID retrieves a customer. Returns nil when no customer matches.
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)

	// GetByEmail retrieves a customer by email. Returns nil when none matches.
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)

	// Update persists the mutable fields of a customer
	Update(ctx context.Context, customer *domain.Customer) error

	// Delete removes a customer row. Used to roll back a pending customer
	// when session creation fails; paid customers are never deleted.
	Delete(ctx context.Context, id int64) error

	// LinkToEvent records the customer as a buyer of the event, once
	LinkToEvent(ctx context.Context, eventID, customerID int64) error

	// List retrieves all customers
	List(ctx context.Context) ([]*domain.Customer, error)
}
