package domain

import (
	"errors"
	"time"
)

// CustomerStatus represents the checkout state of a customer
type CustomerStatus string

const (
	CustomerStatusPending CustomerStatus = "pending"
	CustomerStatusPaid    CustomerStatus = "paid"
)

var ErrCustomerNotFound = errors.New("customer not found")

// Customer is a buyer created by the card-checkout flow. A pending customer is
// created before the checkout session; the stripe webhook marks it paid.
type Customer struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	Documento        string         `json:"documento"`
	StripeCustomerID string         `json:"stripe_customer_id,omitempty"`
	Status           CustomerStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewCustomer creates a customer in pending state
func NewCustomer(name, email, documento string) (*Customer, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}
	now := time.Now()
	return &Customer{
		Name:      name,
		Email:     email,
		Documento: documento,
		Status:    CustomerStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkPaid records a completed checkout and links the stripe customer
func (c *Customer) MarkPaid(stripeCustomerID string) {
	c.Status = CustomerStatusPaid
	if stripeCustomerID != "" {
		c.StripeCustomerID = stripeCustomerID
	}
	c.UpdatedAt = time.Now()
}
