package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/events"
	"github.com/sitemilenibarros/backend/internal/gateway"
	"github.com/sitemilenibarros/backend/internal/repository"
)

type reconcileFixture struct {
	service   ReconcileService
	forms     FormService
	formRepo  *repository.MemoryRegistrationRepository
	gateway   *fakePreferenceGateway
	publisher *events.MemoryPublisher
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		formRepo:  repository.NewMemoryRegistrationRepository(),
		gateway:   newFakePreferenceGateway(),
		publisher: events.NewMemoryPublisher(),
	}
	eventRepo := repository.NewMemoryEventRepository(testEvent(nil))
	f.forms = NewFormService(
		f.formRepo, eventRepo, repository.NewMemoryFormSchemaRepository(),
		f.gateway, f.publisher, BackURLConfig{}, zap.NewNop(),
	)
	f.service = NewReconcileService(f.formRepo, f.gateway, f.publisher, zap.NewNop())
	return f
}

// registerPayment installs a provider-side payment record for a form
func (f *reconcileFixture) registerPayment(paymentID string, formID int64, status string, updatedAt time.Time) {
	f.gateway.payments[paymentID] = &gateway.PaymentRecord{
		ID:                paymentID,
		Status:            status,
		ExternalReference: fmt.Sprintf("form-%d-presencial", formID),
		DateLastUpdated:   updatedAt,
	}
}

func webhookBody(paymentID string) *dto.PaymentWebhookRequest {
	req := &dto.PaymentWebhookRequest{Type: "payment"}
	req.Data.ID = json.Number(paymentID)
	return req
}

func TestReconcileService_ApprovesPendingForm(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	resp, err := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	if err != nil {
		t.Fatalf("CreateWithPayment: %v", err)
	}
	f.registerPayment("777", resp.Form.ID, "approved", time.Now())

	if err := f.service.ProcessWebhook(ctx, webhookBody("777"), "", ""); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	stored, _ := f.formRepo.GetByID(ctx, resp.Form.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusApproved {
		t.Errorf("Expected approved, got %s", stored.PaymentStatus)
	}
	if stored.PaymentID != "777" {
		t.Errorf("Expected payment id 777, got %q", stored.PaymentID)
	}

	published := f.publisher.Events()
	if len(published) != 1 {
		t.Fatalf("Expected 1 published event, got %d", len(published))
	}
	if published[0].Status != domain.PaymentStatusApproved {
		t.Errorf("Expected approved transition, got %s", published[0].Status)
	}
}

func TestReconcileService_RedeliveryIsNoop(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	resp, _ := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	f.registerPayment("777", resp.Form.ID, "approved", time.Now())

	for i := 0; i < 3; i++ {
		if err := f.service.ProcessWebhook(ctx, webhookBody("777"), "", ""); err != nil {
			t.Fatalf("Delivery %d: %v", i, err)
		}
	}

	if got := len(f.publisher.Events()); got != 1 {
		t.Errorf("Expected one transition despite redelivery, got %d", got)
	}
}

func TestReconcileService_TerminalStatusAbsorbs(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	resp, _ := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	approvedAt := time.Now()
	f.registerPayment("777", resp.Form.ID, "approved", approvedAt)
	if err := f.service.ProcessWebhook(ctx, webhookBody("777"), "", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// A late rejected notification with a newer provider timestamp is still
	// refused: terminal states only yield to the admin override.
	f.registerPayment("888", resp.Form.ID, "rejected", approvedAt.Add(time.Minute))
	err := f.service.ProcessWebhook(ctx, webhookBody("888"), "", "")
	if !errors.Is(err, domain.ErrStatusFinal) {
		t.Errorf("Expected ErrStatusFinal, got %v", err)
	}

	stored, _ := f.formRepo.GetByID(ctx, resp.Form.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusApproved {
		t.Errorf("Expected approved to stick, got %s", stored.PaymentStatus)
	}
	if stored.PaymentID != "777" {
		t.Errorf("Expected original payment id, got %q", stored.PaymentID)
	}
}

func TestReconcileService_LatePendingAfterApproved(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	resp, _ := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	approvedAt := time.Now()
	f.registerPayment("777", resp.Form.ID, "approved", approvedAt)
	f.service.ProcessWebhook(ctx, webhookBody("777"), "", "")

	// The out-of-order pending notification carries an older provider
	// timestamp and is dropped as stale.
	f.registerPayment("777-old", resp.Form.ID, "pending", approvedAt.Add(-time.Minute))
	err := f.service.ProcessWebhook(ctx, webhookBody("777-old"), "", "")
	if !errors.Is(err, domain.ErrStaleNotification) {
		t.Errorf("Expected ErrStaleNotification, got %v", err)
	}

	stored, _ := f.formRepo.GetByID(ctx, resp.Form.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusApproved {
		t.Errorf("Expected approved to survive late pending, got %s", stored.PaymentStatus)
	}
}

func TestReconcileService_UnknownProviderStatusMapsToPending(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	resp, _ := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	f.registerPayment("777", resp.Form.ID, "in_mediation", time.Now())

	if err := f.service.ProcessWebhook(ctx, webhookBody("777"), "", ""); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	stored, _ := f.formRepo.GetByID(ctx, resp.Form.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("Expected pending, got %s", stored.PaymentStatus)
	}
	// The payment id was attached even though the status did not move.
	if stored.PaymentID != "777" {
		t.Errorf("Expected payment id recorded, got %q", stored.PaymentID)
	}
}

func TestReconcileService_IgnoresNonPaymentTopics(t *testing.T) {
	f := newReconcileFixture(t)

	req := &dto.PaymentWebhookRequest{Type: "merchant_order"}
	req.Data.ID = json.Number("123")
	if err := f.service.ProcessWebhook(context.Background(), req, "", ""); err != nil {
		t.Errorf("Expected non-payment topic to be ignored, got %v", err)
	}
	if len(f.publisher.Events()) != 0 {
		t.Error("Expected no events")
	}
}

func TestReconcileService_QueryFallback(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	resp, _ := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	f.registerPayment("777", resp.Form.ID, "approved", time.Now())

	// Body carries neither topic nor id; the query parameters do.
	if err := f.service.ProcessWebhook(ctx, &dto.PaymentWebhookRequest{}, "payment", "777"); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	stored, _ := f.formRepo.GetByID(ctx, resp.Form.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusApproved {
		t.Errorf("Expected approved, got %s", stored.PaymentStatus)
	}
}

func TestReconcileService_MissingPaymentIDIsAcked(t *testing.T) {
	f := newReconcileFixture(t)

	if err := f.service.ProcessWebhook(context.Background(), &dto.PaymentWebhookRequest{Type: "payment"}, "", ""); err != nil {
		t.Errorf("Expected nil for id-less notification, got %v", err)
	}
}

func TestReconcileService_LookupFailureReturnsError(t *testing.T) {
	f := newReconcileFixture(t)

	err := f.service.ProcessWebhook(context.Background(), webhookBody("unknown"), "", "")
	if !errors.Is(err, gateway.ErrPaymentRecordNotFound) {
		t.Errorf("Expected lookup error to surface for logging, got %v", err)
	}
}

func TestReconcileService_BadExternalReference(t *testing.T) {
	f := newReconcileFixture(t)

	f.gateway.payments["555"] = &gateway.PaymentRecord{
		ID:                "555",
		Status:            "approved",
		ExternalReference: "order-nonsense",
		DateLastUpdated:   time.Now(),
	}

	err := f.service.ProcessWebhook(context.Background(), webhookBody("555"), "", "")
	if !errors.Is(err, domain.ErrInvalidReference) {
		t.Errorf("Expected ErrInvalidReference, got %v", err)
	}
}

func TestReconcileService_SweepPending(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	// Two stale pendings. The provider knows about the first (payer paid but
	// the webhook was lost); the second payer abandoned checkout.
	paid, _ := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	abandoned, _ := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})

	f.gateway.payments["sweep-1"] = &gateway.PaymentRecord{
		ID:                "sweep-1",
		Status:            "approved",
		ExternalReference: fmt.Sprintf("form-%d-presencial", paid.Form.ID),
		DateLastUpdated:   time.Now(),
	}

	changed, err := f.service.SweepPending(ctx, 0, 10)
	if err != nil {
		t.Fatalf("SweepPending: %v", err)
	}
	if changed != 1 {
		t.Errorf("Expected 1 changed registration, got %d", changed)
	}

	stored, _ := f.formRepo.GetByID(ctx, paid.Form.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusApproved {
		t.Errorf("Expected lost webhook recovered, got %s", stored.PaymentStatus)
	}

	untouched, _ := f.formRepo.GetByID(ctx, abandoned.Form.ID, false)
	if untouched.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("Expected abandoned checkout untouched, got %s", untouched.PaymentStatus)
	}

	// The recovered registration now carries a payment id, so the next sweep
	// skips it.
	changed, err = f.service.SweepPending(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Second SweepPending: %v", err)
	}
	if changed != 0 {
		t.Errorf("Expected second sweep to be a no-op, got %d", changed)
	}
}

// TestReconcileService_FullLifecycle walks the whole flow: capacity-limited
// creation, approval via webhook, redelivery, a late conflicting terminal
// update, soft delete and restore.
func TestReconcileService_FullLifecycle(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	// Fill two of the default 36 onsite slots.
	first, err := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	if err != nil {
		t.Fatalf("Create first: %v", err)
	}
	second, err := f.forms.CreateWithPayment(ctx, 1, &dto.CreateFormRequest{FormData: onsitePayload()})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}

	// First payer succeeds.
	now := time.Now()
	f.registerPayment("1001", first.Form.ID, "approved", now)
	if err := f.service.ProcessWebhook(ctx, webhookBody("1001"), "", ""); err != nil {
		t.Fatalf("Approve first: %v", err)
	}

	// Second payer's card is declined.
	f.registerPayment("1002", second.Form.ID, "rejected", now)
	if err := f.service.ProcessWebhook(ctx, webhookBody("1002"), "", ""); err != nil {
		t.Fatalf("Reject second: %v", err)
	}

	// Provider redelivers both; nothing moves.
	f.service.ProcessWebhook(ctx, webhookBody("1001"), "", "")
	f.service.ProcessWebhook(ctx, webhookBody("1002"), "", "")

	// A late cancellation for the approved form is refused.
	f.registerPayment("1003", first.Form.ID, "cancelled", now.Add(time.Hour))
	if err := f.service.ProcessWebhook(ctx, webhookBody("1003"), "", ""); !errors.Is(err, domain.ErrStatusFinal) {
		t.Errorf("Expected ErrStatusFinal, got %v", err)
	}

	// The rejected form freed its slot.
	count, _ := f.formRepo.CountActiveByModality(ctx, 1, domain.ModalityOnsite)
	if count != 1 {
		t.Errorf("Expected 1 active onsite registration, got %d", count)
	}

	// Exactly two transitions were published: pending->approved and
	// pending->rejected.
	published := f.publisher.Events()
	if len(published) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(published))
	}

	// Soft delete the approved form, then restore it.
	if err := f.forms.SoftDelete(ctx, first.Form.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	count, _ = f.formRepo.CountActiveByModality(ctx, 1, domain.ModalityOnsite)
	if count != 0 {
		t.Errorf("Expected 0 active after delete, got %d", count)
	}
	if err := f.forms.Restore(ctx, first.Form.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	stored, _ := f.formRepo.GetByID(ctx, first.Form.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusApproved {
		t.Errorf("Expected approved after restore, got %s", stored.PaymentStatus)
	}
}
