package gateway

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/webhook"
)

// CheckoutGateway defines the card-checkout operations backed by stripe.
// Products are created lazily per event; prices are rotated instead of
// mutated because stripe prices are immutable once created.
type CheckoutGateway interface {
	// CreateProduct creates a product for an event and returns its id
	CreateProduct(ctx context.Context, name, description string) (string, error)

	// RotatePrice deactivates the product's active prices and creates a new
	// one with the given amount in cents. Returns the new price id.
	RotatePrice(ctx context.Context, productID string, amountCents int64) (string, error)

	// ActivePrice returns the product's current active price id, or "" when
	// none exists.
	ActivePrice(ctx context.Context, productID string) (string, error)

	// CreateSession creates a hosted checkout session
	CreateSession(ctx context.Context, req *SessionRequest) (*Session, error)

	// VerifyWebhook validates a webhook payload signature and parses the event
	VerifyWebhook(payload []byte, signature string) (stripe.Event, error)
}

// SessionRequest represents a request to create a checkout session
type SessionRequest struct {
	PriceID       string
	Quantity      int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Session represents a created checkout session
type Session struct {
	ID  string
	URL string
}

// StripeCheckoutGateway implements CheckoutGateway using the stripe API
type StripeCheckoutGateway struct {
	currency      string
	webhookSecret string
}

// NewStripeCheckoutGateway creates a new stripe checkout gateway. The secret
// key is installed process-wide, matching how the stripe SDK is keyed.
func NewStripeCheckoutGateway(secretKey, webhookSecret, currency string) *StripeCheckoutGateway {
	stripe.Key = secretKey
	if currency == "" {
		currency = "brl"
	}
	return &StripeCheckoutGateway{
		currency:      currency,
		webhookSecret: webhookSecret,
	}
}

func (g *StripeCheckoutGateway) CreateProduct(ctx context.Context, name, description string) (string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	params.Context = ctx

	p, err := product.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe product: %w", err)
	}
	return p.ID, nil
}

func (g *StripeCheckoutGateway) RotatePrice(ctx context.Context, productID string, amountCents int64) (string, error) {
	listParams := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	listParams.Context = ctx

	it := price.List(listParams)
	for it.Next() {
		old := it.Price()
		updateParams := &stripe.PriceParams{Active: stripe.Bool(false)}
		updateParams.Context = ctx
		if _, err := price.Update(old.ID, updateParams); err != nil {
			return "", fmt.Errorf("failed to deactivate price %s: %w", old.ID, err)
		}
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("failed to list prices: %w", err)
	}

	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amountCents),
		Currency:   stripe.String(g.currency),
	}
	params.Context = ctx

	p, err := price.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe price: %w", err)
	}
	return p.ID, nil
}

func (g *StripeCheckoutGateway) ActivePrice(ctx context.Context, productID string) (string, error) {
	listParams := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	listParams.Context = ctx

	it := price.List(listParams)
	if it.Next() {
		return it.Price().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("failed to list prices: %w", err)
	}
	return "", nil
}

func (g *StripeCheckoutGateway) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeCheckoutGateway) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, g.webhookSecret)
}
