package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// MemoryEventRepository is an in-memory EventRepository for tests
type MemoryEventRepository struct {
	mu     sync.Mutex
	events map[int64]*domain.Event
}

// NewMemoryEventRepository creates an in-memory repository seeded with the
// given events.
func NewMemoryEventRepository(events ...*domain.Event) *MemoryEventRepository {
	r := &MemoryEventRepository{events: make(map[int64]*domain.Event)}
	for _, e := range events {
		r.events[e.ID] = copyEvent(e)
	}
	return r
}

func (r *MemoryEventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	return copyEvent(event), nil
}

func (r *MemoryEventRepository) SetStripeProduct(ctx context.Context, id int64, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	event.StripeProductID = productID
	event.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryEventRepository) SetPrice(ctx context.Context, id int64, modality domain.Modality, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	switch modality {
	case domain.ModalityOnsite:
		event.PriceValueOnsite = &amount
	case domain.ModalityOnline:
		event.PriceValueOnline = &amount
	default:
		return domain.ErrInvalidModality
	}
	event.UpdatedAt = time.Now()
	return nil
}

func copyEvent(e *domain.Event) *domain.Event {
	cp := *e
	if e.PriceValueOnline != nil {
		v := *e.PriceValueOnline
		cp.PriceValueOnline = &v
	}
	if e.PriceValueOnsite != nil {
		v := *e.PriceValueOnsite
		cp.PriceValueOnsite = &v
	}
	if e.LimitOnsiteSlots != nil {
		v := *e.LimitOnsiteSlots
		cp.LimitOnsiteSlots = &v
	}
	return &cp
}
