package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// MemoryRegistrationRepository is an in-memory RegistrationRepository for
// tests and local development.
type MemoryRegistrationRepository struct {
	mu     sync.Mutex
	nextID int64
	regs   map[int64]*domain.Registration
}

// NewMemoryRegistrationRepository creates an empty in-memory repository
func NewMemoryRegistrationRepository() *MemoryRegistrationRepository {
	return &MemoryRegistrationRepository{
		nextID: 1,
		regs:   make(map[int64]*domain.Registration),
	}
}

func (r *MemoryRegistrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(reg)
}

func (r *MemoryRegistrationRepository) CreateWithCapacity(ctx context.Context, reg *domain.Registration, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.countActiveLocked(reg.EventID, reg.Modality())
	if count >= limit {
		return domain.ErrCapacityExceeded
	}
	return r.insertLocked(reg)
}

func (r *MemoryRegistrationRepository) insertLocked(reg *domain.Registration) error {
	reg.ID = r.nextID
	r.nextID++
	r.regs[reg.ID] = copyRegistration(reg)
	return nil
}

func (r *MemoryRegistrationRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok || (!includeDeleted && reg.IsDeleted()) {
		return nil, domain.ErrRegistrationNotFound
	}
	return copyRegistration(reg), nil
}

func (r *MemoryRegistrationRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.regs {
		if reg.PaymentID == paymentID && paymentID != "" && !reg.IsDeleted() {
			return copyRegistration(reg), nil
		}
	}
	return nil, domain.ErrRegistrationNotFound
}

func (r *MemoryRegistrationRepository) List(ctx context.Context, page, limit int) ([]*domain.Registration, int, error) {
	return r.list(ctx, func(reg *domain.Registration) bool { return !reg.IsDeleted() }, page, limit)
}

func (r *MemoryRegistrationRepository) ListByEvent(ctx context.Context, eventID int64, page, limit int) ([]*domain.Registration, int, error) {
	return r.list(ctx, func(reg *domain.Registration) bool {
		return reg.EventID == eventID && !reg.IsDeleted()
	}, page, limit)
}

func (r *MemoryRegistrationRepository) list(ctx context.Context, match func(*domain.Registration) bool, page, limit int) ([]*domain.Registration, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	all := make([]*domain.Registration, 0)
	for _, reg := range r.regs {
		if match(reg) {
			all = append(all, copyRegistration(reg))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Registration{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryRegistrationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit < 1 {
		limit = 50
	}
	stale := make([]*domain.Registration, 0)
	for _, reg := range r.regs {
		if reg.PaymentStatus == domain.PaymentStatusPending && !reg.IsDeleted() &&
			reg.PreferenceID != "" && reg.PaymentID == "" && reg.CreatedAt.Before(cutoff) {
			stale = append(stale, copyRegistration(reg))
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *MemoryRegistrationRepository) CountActiveByModality(ctx context.Context, eventID int64, modality domain.Modality) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countActiveLocked(eventID, modality), nil
}

func (r *MemoryRegistrationRepository) countActiveLocked(eventID int64, modality domain.Modality) int {
	count := 0
	for _, reg := range r.regs {
		if reg.EventID == eventID && reg.Modality() == modality &&
			!reg.IsDeleted() && reg.PaymentStatus.CountsAgainstCapacity() {
			count++
		}
	}
	return count
}

func (r *MemoryRegistrationRepository) Update(ctx context.Context, reg *domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.regs[reg.ID]; !ok {
		return domain.ErrRegistrationNotFound
	}
	reg.UpdatedAt = time.Now()
	r.regs[reg.ID] = copyRegistration(reg)
	return nil
}

func (r *MemoryRegistrationRepository) SetPreference(ctx context.Context, id int64, preferenceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	reg.PreferenceID = preferenceID
	reg.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRegistrationRepository) Reconcile(ctx context.Context, id int64, apply func(*domain.Registration) (bool, error)) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.regs[id]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}

	reg := copyRegistration(stored)
	changed, err := apply(reg)
	if err != nil {
		return reg, err
	}
	if changed {
		r.regs[id] = copyRegistration(reg)
	}
	return reg, nil
}

func (r *MemoryRegistrationRepository) SoftDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok || reg.IsDeleted() {
		return domain.ErrRegistrationNotFound
	}
	now := time.Now()
	reg.DeletedAt = &now
	reg.UpdatedAt = now
	return nil
}

func (r *MemoryRegistrationRepository) Restore(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	if !reg.IsDeleted() {
		return domain.ErrNotDeleted
	}
	reg.DeletedAt = nil
	reg.UpdatedAt = time.Now()
	return nil
}

// copyRegistration deep-copies a registration so callers never share the
// stored instance.
func copyRegistration(reg *domain.Registration) *domain.Registration {
	cp := *reg
	cp.Payload = make(map[string]any, len(reg.Payload))
	for k, v := range reg.Payload {
		cp.Payload[k] = v
	}
	cp.PaymentCreatedAt = copyTime(reg.PaymentCreatedAt)
	cp.PaymentUpdatedAt = copyTime(reg.PaymentUpdatedAt)
	cp.ProviderUpdatedAt = copyTime(reg.ProviderUpdatedAt)
	cp.DeletedAt = copyTime(reg.DeletedAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
