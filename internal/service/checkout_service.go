package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/gateway"
	"github.com/sitemilenibarros/backend/internal/repository"
)

var (
	// ErrInvalidCPF is returned when the documento fails CPF validation
	ErrInvalidCPF = errors.New("invalid CPF")

	// ErrNoActivePrice is returned when the event's product has no active price
	ErrNoActivePrice = errors.New("event has no active stripe price")

	// ErrWebhookSignature is returned when a stripe delivery fails signature
	// verification
	ErrWebhookSignature = errors.New("webhook signature verification failed")
)

// CheckoutService handles the card-checkout slice: stripe products and prices
// per event, hosted checkout sessions and their completion webhooks.
type CheckoutService interface {
	// CreateProduct creates the event's stripe product and links it
	CreateProduct(ctx context.Context, eventID int64, req *dto.CreateStripeProductRequest) (string, error)

	// RotatePrice replaces the product's active price and persists the amount
	// on the event
	RotatePrice(ctx context.Context, eventID int64, req *dto.CreateStripePriceRequest) (string, error)

	// CreateCheckout creates a pending customer and a checkout session
	CreateCheckout(ctx context.Context, eventID int64, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error)

	// HandleWebhook processes a stripe webhook delivery
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	// ListCustomers retrieves all checkout customers
	ListCustomers(ctx context.Context) ([]*dto.CustomerResponse, error)
}

// CheckoutURLConfig holds the redirect targets after a stripe checkout
type CheckoutURLConfig struct {
	SuccessURL string
	CancelURL  string
}

type checkoutService struct {
	eventRepo    repository.EventRepository
	customerRepo repository.CustomerRepository
	gateway      gateway.CheckoutGateway
	urls         CheckoutURLConfig
	logger       *zap.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(
	eventRepo repository.EventRepository,
	customerRepo repository.CustomerRepository,
	gw gateway.CheckoutGateway,
	urls CheckoutURLConfig,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		eventRepo:    eventRepo,
		customerRepo: customerRepo,
		gateway:      gw,
		urls:         urls,
		logger:       logger,
	}
}

func (s *checkoutService) CreateProduct(ctx context.Context, eventID int64, req *dto.CreateStripeProductRequest) (string, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	if event == nil {
		return "", domain.ErrEventNotFound
	}
	if event.StripeProductID != "" {
		return event.StripeProductID, nil
	}

	name := req.Name
	if name == "" {
		name = event.Title
	}
	description := req.Description
	if description == "" {
		description = event.Description
	}

	productID, err := s.gateway.CreateProduct(ctx, name, description)
	if err != nil {
		return "", err
	}
	if err := s.eventRepo.SetStripeProduct(ctx, eventID, productID); err != nil {
		return "", err
	}

	s.logger.Info("stripe product created",
		zap.Int64("event_id", eventID),
		zap.String("product_id", productID),
	)
	return productID, nil
}

func (s *checkoutService) RotatePrice(ctx context.Context, eventID int64, req *dto.CreateStripePriceRequest) (string, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	if event == nil {
		return "", domain.ErrEventNotFound
	}
	if event.StripeProductID == "" {
		return "", domain.ErrNoStripeIntegration
	}

	priceID, err := s.gateway.RotatePrice(ctx, event.StripeProductID, req.AmountCents)
	if err != nil {
		return "", err
	}
	if err := s.eventRepo.SetPrice(ctx, eventID, domain.Modality(req.Modality), req.AmountCents); err != nil {
		return "", err
	}

	s.logger.Info("stripe price rotated",
		zap.Int64("event_id", eventID),
		zap.String("price_id", priceID),
		zap.Int64("amount_cents", req.AmountCents),
	)
	return priceID, nil
}

func (s *checkoutService) CreateCheckout(ctx context.Context, eventID int64, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error) {
	if !isValidCPF(req.Documento) {
		return nil, ErrInvalidCPF
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	if event.StripeProductID == "" {
		return nil, domain.ErrNoStripeIntegration
	}

	priceID, err := s.gateway.ActivePrice(ctx, event.StripeProductID)
	if err != nil {
		return nil, err
	}
	if priceID == "" {
		return nil, ErrNoActivePrice
	}

	customer, err := domain.NewCustomer(req.Name, req.Email, normalizeCPF(req.Documento))
	if err != nil {
		return nil, err
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateSession(ctx, &gateway.SessionRequest{
		PriceID:       priceID,
		Quantity:      req.Quantity,
		CustomerEmail: req.Email,
		SuccessURL:    s.urls.SuccessURL,
		CancelURL:     s.urls.CancelURL,
		Metadata: map[string]string{
			"customer_id": strconv.FormatInt(customer.ID, 10),
			"event_id":    strconv.FormatInt(eventID, 10),
		},
	})
	if err != nil {
		// Roll back the pending customer so a retry does not pile up rows.
		if delErr := s.customerRepo.Delete(ctx, customer.ID); delErr != nil {
			s.logger.Error("failed to roll back pending customer",
				zap.Int64("customer_id", customer.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.Int64("event_id", eventID),
		zap.Int64("customer_id", customer.ID),
		zap.String("session_id", sess.ID),
	)
	return &dto.CheckoutResponse{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		CustomerID:  customer.ID,
	}, nil
}

func (s *checkoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		s.logger.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}

	customerID, err := strconv.ParseInt(sess.Metadata["customer_id"], 10, 64)
	if err != nil {
		s.logger.Warn("checkout session without customer metadata", zap.String("session_id", sess.ID))
		return nil
	}

	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		s.logger.Warn("checkout session references unknown customer",
			zap.Int64("customer_id", customerID),
			zap.String("session_id", sess.ID),
		)
		return nil
	}

	stripeCustomerID := ""
	if sess.Customer != nil {
		stripeCustomerID = sess.Customer.ID
	}
	customer.MarkPaid(stripeCustomerID)
	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return err
	}

	if eventID, err := strconv.ParseInt(sess.Metadata["event_id"], 10, 64); err == nil {
		if err := s.customerRepo.LinkToEvent(ctx, eventID, customerID); err != nil {
			s.logger.Error("failed to link customer to event",
				zap.Int64("event_id", eventID),
				zap.Int64("customer_id", customerID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("checkout completed",
		zap.Int64("customer_id", customerID),
		zap.String("session_id", sess.ID),
	)
	return nil
}

func (s *checkoutService) ListCustomers(ctx context.Context) ([]*dto.CustomerResponse, error) {
	customers, err := s.customerRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.CustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, &dto.CustomerResponse{
			ID:               c.ID,
			Name:             c.Name,
			Email:            c.Email,
			Documento:        c.Documento,
			StripeCustomerID: c.StripeCustomerID,
			Status:           string(c.Status),
		})
	}
	return out, nil
}

// normalizeCPF strips formatting characters from a CPF
func normalizeCPF(cpf string) string {
	digits := make([]byte, 0, 11)
	for i := 0; i < len(cpf); i++ {
		if cpf[i] >= '0' && cpf[i] <= '9' {
			digits = append(digits, cpf[i])
		}
	}
	return string(digits)
}

// isValidCPF checks the CPF's check digits
func isValidCPF(cpf string) bool {
	digits := normalizeCPF(cpf)
	if len(digits) != 11 {
		return false
	}

	allEqual := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return false
	}

	for _, pos := range []int{9, 10} {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += int(digits[i]-'0') * (pos + 1 - i)
		}
		check := (sum * 10) % 11 % 10
		if check != int(digits[pos]-'0') {
			return false
		}
	}
	return true
}
