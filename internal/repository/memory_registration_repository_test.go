package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/schema"
)

func newOnsiteRegistration(t *testing.T, eventID int64) *domain.Registration {
	t.Helper()
	reg, err := domain.NewRegistration(eventID, map[string]any{
		"modality": "presencial",
		"email":    "ana@example.com",
	})
	if err != nil {
		t.Fatalf("NewRegistration: %v", err)
	}
	return reg
}

func TestMemoryRegistrationRepository_CreateAssignsIDs(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	first := newOnsiteRegistration(t, 1)
	second := newOnsiteRegistration(t, 1)

	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if first.ID == 0 || second.ID == 0 {
		t.Fatal("Expected ids to be assigned")
	}
	if first.ID == second.ID {
		t.Errorf("Expected distinct ids, both got %d", first.ID)
	}
}

func TestMemoryRegistrationRepository_CreateWithCapacity(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	limit := 2
	for i := 0; i < limit; i++ {
		if err := repo.CreateWithCapacity(ctx, newOnsiteRegistration(t, 1), limit); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	err := repo.CreateWithCapacity(ctx, newOnsiteRegistration(t, 1), limit)
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("Expected ErrCapacityExceeded, got %v", err)
	}

	// A rejected registration frees its slot.
	all, _, _ := repo.List(ctx, 1, 10)
	_, err = repo.Reconcile(ctx, all[0].ID, func(r *domain.Registration) (bool, error) {
		return r.ApplyReconciliation(domain.PaymentStatusRejected, "pay-1", time.Now())
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if err := repo.CreateWithCapacity(ctx, newOnsiteRegistration(t, 1), limit); err != nil {
		t.Errorf("Expected slot to be freed after rejection, got %v", err)
	}
}

func TestMemoryRegistrationRepository_CapacityIsPerEvent(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	if err := repo.CreateWithCapacity(ctx, newOnsiteRegistration(t, 1), 1); err != nil {
		t.Fatalf("Create event 1: %v", err)
	}
	if err := repo.CreateWithCapacity(ctx, newOnsiteRegistration(t, 2), 1); err != nil {
		t.Errorf("Expected event 2 to have its own capacity, got %v", err)
	}
}

func TestMemoryRegistrationRepository_GetByPaymentID(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	reg := newOnsiteRegistration(t, 1)
	repo.Create(ctx, reg)

	_, err := repo.Reconcile(ctx, reg.ID, func(r *domain.Registration) (bool, error) {
		return r.ApplyReconciliation(domain.PaymentStatusApproved, "pay-123", time.Now())
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	found, err := repo.GetByPaymentID(ctx, "pay-123")
	if err != nil {
		t.Fatalf("GetByPaymentID: %v", err)
	}
	if found.ID != reg.ID {
		t.Errorf("Expected id %d, got %d", reg.ID, found.ID)
	}

	if _, err := repo.GetByPaymentID(ctx, "pay-missing"); !errors.Is(err, domain.ErrRegistrationNotFound) {
		t.Errorf("Expected ErrRegistrationNotFound, got %v", err)
	}
}

func TestMemoryRegistrationRepository_ReconcileReplayIsNoop(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	reg := newOnsiteRegistration(t, 1)
	repo.Create(ctx, reg)

	providerTS := time.Now()
	apply := func(r *domain.Registration) (bool, error) {
		return r.ApplyReconciliation(domain.PaymentStatusApproved, "pay-1", providerTS)
	}

	first, err := repo.Reconcile(ctx, reg.ID, apply)
	if err != nil {
		t.Fatalf("First reconcile: %v", err)
	}
	second, err := repo.Reconcile(ctx, reg.ID, apply)
	if err != nil {
		t.Fatalf("Replay reconcile: %v", err)
	}

	if !first.PaymentUpdatedAt.Equal(*second.PaymentUpdatedAt) {
		t.Error("Expected replay to leave payment_updated_at untouched")
	}
	if second.PaymentStatus != domain.PaymentStatusApproved {
		t.Errorf("Expected approved, got %s", second.PaymentStatus)
	}
}

func TestMemoryRegistrationRepository_ReconcileErrorDiscardsChanges(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	reg := newOnsiteRegistration(t, 1)
	repo.Create(ctx, reg)

	_, err := repo.Reconcile(ctx, reg.ID, func(r *domain.Registration) (bool, error) {
		r.PaymentStatus = domain.PaymentStatusApproved
		return false, errors.New("boom")
	})
	if err == nil {
		t.Fatal("Expected error from apply")
	}

	stored, _ := repo.GetByID(ctx, reg.ID, false)
	if stored.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("Expected pending after failed apply, got %s", stored.PaymentStatus)
	}
}

func TestMemoryRegistrationRepository_SoftDeleteAndRestore(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	reg := newOnsiteRegistration(t, 1)
	repo.Create(ctx, reg)

	if err := repo.Restore(ctx, reg.ID); !errors.Is(err, domain.ErrNotDeleted) {
		t.Errorf("Expected ErrNotDeleted before delete, got %v", err)
	}

	if err := repo.SoftDelete(ctx, reg.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	if _, err := repo.GetByID(ctx, reg.ID, false); !errors.Is(err, domain.ErrRegistrationNotFound) {
		t.Errorf("Expected deleted row to be hidden, got %v", err)
	}

	found, err := repo.GetByID(ctx, reg.ID, true)
	if err != nil {
		t.Fatalf("GetByID includeDeleted: %v", err)
	}
	if !found.IsDeleted() {
		t.Error("Expected deleted_at to be set")
	}

	// Deleted rows stop consuming capacity.
	count, _ := repo.CountActiveByModality(ctx, 1, domain.ModalityOnsite)
	if count != 0 {
		t.Errorf("Expected 0 active registrations, got %d", count)
	}

	if err := repo.Restore(ctx, reg.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := repo.GetByID(ctx, reg.ID, false); err != nil {
		t.Errorf("Expected restored row to be visible, got %v", err)
	}
}

func TestMemoryRegistrationRepository_ListPagination(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		repo.Create(ctx, newOnsiteRegistration(t, 1))
	}

	page1, total, err := repo.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
	if len(page1) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(page1))
	}

	page3, _, _ := repo.List(ctx, 3, 2)
	if len(page3) != 1 {
		t.Errorf("Expected 1 row on last page, got %d", len(page3))
	}

	empty, _, _ := repo.List(ctx, 4, 2)
	if len(empty) != 0 {
		t.Errorf("Expected empty page past the end, got %d rows", len(empty))
	}
}

func TestMemoryFormSchemaRepository_ModalityFallback(t *testing.T) {
	repo := NewMemoryFormSchemaRepository()
	ctx := context.Background()

	generic := &schema.Schema{Fields: map[string]schema.Field{
		"email": {Type: schema.TypeString, Required: true},
	}}
	onsite := &schema.Schema{Fields: map[string]schema.Field{
		"email": {Type: schema.TypeString, Required: true},
		"cpf":   {Type: schema.TypeString, Required: true},
	}}

	if err := repo.Upsert(ctx, 1, "", generic); err != nil {
		t.Fatalf("Upsert generic: %v", err)
	}
	if err := repo.Upsert(ctx, 1, "presencial", onsite); err != nil {
		t.Fatalf("Upsert onsite: %v", err)
	}

	got, err := repo.Get(ctx, 1, "presencial")
	if err != nil {
		t.Fatalf("Get presencial: %v", err)
	}
	if len(got.Fields) != 2 {
		t.Errorf("Expected modality-specific schema, got %d fields", len(got.Fields))
	}

	got, err = repo.Get(ctx, 1, "online")
	if err != nil {
		t.Fatalf("Get online: %v", err)
	}
	if len(got.Fields) != 1 {
		t.Errorf("Expected fallback to generic schema, got %d fields", len(got.Fields))
	}

	if _, err := repo.Get(ctx, 2, "online"); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("Expected ErrSchemaNotFound, got %v", err)
	}
}
