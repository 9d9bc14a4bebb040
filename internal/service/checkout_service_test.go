package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/gateway"
	"github.com/sitemilenibarros/backend/internal/repository"
)

// fakeCheckoutGateway is a controllable CheckoutGateway for tests
type fakeCheckoutGateway struct {
	products    int
	prices      map[string]string
	sessionErr  error
	webhookEvt  stripe.Event
	webhookErr  error
	lastSession *gateway.SessionRequest
}

func newFakeCheckoutGateway() *fakeCheckoutGateway {
	return &fakeCheckoutGateway{prices: make(map[string]string)}
}

func (f *fakeCheckoutGateway) CreateProduct(ctx context.Context, name, description string) (string, error) {
	f.products++
	return fmt.Sprintf("prod_%d", f.products), nil
}

func (f *fakeCheckoutGateway) RotatePrice(ctx context.Context, productID string, amountCents int64) (string, error) {
	id := fmt.Sprintf("price_%s_%d", productID, amountCents)
	f.prices[productID] = id
	return id, nil
}

func (f *fakeCheckoutGateway) ActivePrice(ctx context.Context, productID string) (string, error) {
	return f.prices[productID], nil
}

func (f *fakeCheckoutGateway) CreateSession(ctx context.Context, req *gateway.SessionRequest) (*gateway.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.lastSession = req
	return &gateway.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/cs_test_1"}, nil
}

func (f *fakeCheckoutGateway) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	return f.webhookEvt, f.webhookErr
}

// validCPF passes the check-digit validation
const validCPF = "529.982.247-25"

type checkoutFixture struct {
	service   CheckoutService
	eventRepo *repository.MemoryEventRepository
	customers *repository.MemoryCustomerRepository
	gateway   *fakeCheckoutGateway
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		eventRepo: repository.NewMemoryEventRepository(testEvent(nil)),
		customers: repository.NewMemoryCustomerRepository(),
		gateway:   newFakeCheckoutGateway(),
	}
	f.service = NewCheckoutService(
		f.eventRepo, f.customers, f.gateway,
		CheckoutURLConfig{SuccessURL: "https://site.example.com/ok", CancelURL: "https://site.example.com/cancel"},
		zap.NewNop(),
	)
	return f
}

func (f *checkoutFixture) setupProductAndPrice(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.CreateProduct(ctx, 1, &dto.CreateStripeProductRequest{}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if _, err := f.service.RotatePrice(ctx, 1, &dto.CreateStripePriceRequest{Modality: "presencial", AmountCents: 15000}); err != nil {
		t.Fatalf("RotatePrice: %v", err)
	}
}

func TestCheckoutService_CreateProductIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	first, err := f.service.CreateProduct(ctx, 1, &dto.CreateStripeProductRequest{})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	second, err := f.service.CreateProduct(ctx, 1, &dto.CreateStripeProductRequest{})
	if err != nil {
		t.Fatalf("Second CreateProduct: %v", err)
	}
	if first != second {
		t.Errorf("Expected existing product reused, got %s then %s", first, second)
	}
	if f.gateway.products != 1 {
		t.Errorf("Expected one stripe product, got %d", f.gateway.products)
	}
}

func TestCheckoutService_RotatePriceRequiresProduct(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.service.RotatePrice(context.Background(), 1, &dto.CreateStripePriceRequest{Modality: "online", AmountCents: 9900})
	if !errors.Is(err, domain.ErrNoStripeIntegration) {
		t.Errorf("Expected ErrNoStripeIntegration, got %v", err)
	}
}

func TestCheckoutService_RotatePricePersistsAmount(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	f.service.CreateProduct(ctx, 1, &dto.CreateStripeProductRequest{})
	if _, err := f.service.RotatePrice(ctx, 1, &dto.CreateStripePriceRequest{Modality: "online", AmountCents: 12300}); err != nil {
		t.Fatalf("RotatePrice: %v", err)
	}

	event, _ := f.eventRepo.GetByID(ctx, 1)
	price, err := event.PriceFor(domain.ModalityOnline)
	if err != nil {
		t.Fatalf("PriceFor: %v", err)
	}
	if price != 12300 {
		t.Errorf("Expected 12300, got %d", price)
	}
}

func TestCheckoutService_CreateCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	f.setupProductAndPrice(t)
	ctx := context.Background()

	resp, err := f.service.CreateCheckout(ctx, 1, &dto.CreateCheckoutRequest{
		Name:      "Ana Souza",
		Email:     "ana@example.com",
		Documento: validCPF,
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	if resp.CheckoutURL == "" || resp.SessionID == "" {
		t.Error("Expected session id and url")
	}

	customer, _ := f.customers.GetByID(ctx, resp.CustomerID)
	if customer == nil {
		t.Fatal("Expected customer row")
	}
	if customer.Status != domain.CustomerStatusPending {
		t.Errorf("Expected pending customer, got %s", customer.Status)
	}
	if customer.Documento != "52998224725" {
		t.Errorf("Expected normalized CPF, got %q", customer.Documento)
	}

	if f.gateway.lastSession.Metadata["customer_id"] == "" || f.gateway.lastSession.Metadata["event_id"] != "1" {
		t.Errorf("Expected local ids in metadata, got %v", f.gateway.lastSession.Metadata)
	}
}

func TestCheckoutService_CreateCheckout_InvalidCPF(t *testing.T) {
	f := newCheckoutFixture(t)
	f.setupProductAndPrice(t)

	tests := []string{"", "123", "111.111.111-11", "529.982.247-26"}
	for _, cpf := range tests {
		_, err := f.service.CreateCheckout(context.Background(), 1, &dto.CreateCheckoutRequest{
			Name:      "Ana Souza",
			Email:     "ana@example.com",
			Documento: cpf,
		})
		if !errors.Is(err, ErrInvalidCPF) {
			t.Errorf("CPF %q: expected ErrInvalidCPF, got %v", cpf, err)
		}
	}
}

func TestCheckoutService_SessionFailureRollsBackCustomer(t *testing.T) {
	f := newCheckoutFixture(t)
	f.setupProductAndPrice(t)
	f.gateway.sessionErr = errors.New("stripe is down")
	ctx := context.Background()

	_, err := f.service.CreateCheckout(ctx, 1, &dto.CreateCheckoutRequest{
		Name:      "Ana Souza",
		Email:     "ana@example.com",
		Documento: validCPF,
	})
	if err == nil {
		t.Fatal("Expected error")
	}

	customers, _ := f.customers.List(ctx)
	if len(customers) != 0 {
		t.Errorf("Expected pending customer rolled back, got %d rows", len(customers))
	}
}

func TestCheckoutService_WebhookMarksCustomerPaid(t *testing.T) {
	f := newCheckoutFixture(t)
	f.setupProductAndPrice(t)
	ctx := context.Background()

	resp, err := f.service.CreateCheckout(ctx, 1, &dto.CreateCheckoutRequest{
		Name:      "Ana Souza",
		Email:     "ana@example.com",
		Documento: validCPF,
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	raw := fmt.Sprintf(`{
		"id": "cs_test_1",
		"customer": {"id": "cus_123"},
		"metadata": {"customer_id": "%d", "event_id": "1"}
	}`, resp.CustomerID)
	f.gateway.webhookEvt = stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: []byte(raw)},
	}

	if err := f.service.HandleWebhook(ctx, []byte("{}"), "sig"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	customer, _ := f.customers.GetByID(ctx, resp.CustomerID)
	if customer.Status != domain.CustomerStatusPaid {
		t.Errorf("Expected paid, got %s", customer.Status)
	}
	if customer.StripeCustomerID != "cus_123" {
		t.Errorf("Expected stripe customer linked, got %q", customer.StripeCustomerID)
	}
}

func TestCheckoutService_WebhookIgnoresOtherEvents(t *testing.T) {
	f := newCheckoutFixture(t)
	f.gateway.webhookEvt = stripe.Event{Type: "invoice.paid", Data: &stripe.EventData{Raw: []byte(`{}`)}}

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Errorf("Expected other event types ignored, got %v", err)
	}
}

func TestCheckoutService_WebhookBadSignature(t *testing.T) {
	f := newCheckoutFixture(t)
	f.gateway.webhookErr = errors.New("bad signature")

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err == nil {
		t.Error("Expected signature error to surface")
	}
}
