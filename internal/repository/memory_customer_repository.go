package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// MemoryCustomerRepository is an in-memory CustomerRepository for tests
type MemoryCustomerRepository struct {
	mu        sync.Mutex
	nextID    int64
	customers map[int64]*domain.Customer
	links     map[[2]int64]bool
}

// NewMemoryCustomerRepository creates an empty in-memory repository
func NewMemoryCustomerRepository() *MemoryCustomerRepository {
	return &MemoryCustomerRepository{
		nextID:    1,
		customers: make(map[int64]*domain.Customer),
		links:     make(map[[2]int64]bool),
	}
}

func (r *MemoryCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	customer.ID = r.nextID
	r.nextID++
	cp := *customer
	r.customers[customer.ID] = &cp
	return nil
}

func (r *MemoryCustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	customer, ok := r.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *customer
	return &cp, nil
}

func (r *MemoryCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, customer := range r.customers {
		if customer.Email == email {
			cp := *customer
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryCustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.customers[customer.ID]; !ok {
		return domain.ErrCustomerNotFound
	}
	customer.UpdatedAt = time.Now()
	cp := *customer
	r.customers[customer.ID] = &cp
	return nil
}

func (r *MemoryCustomerRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.customers[id]; !ok {
		return domain.ErrCustomerNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *MemoryCustomerRepository) LinkToEvent(ctx context.Context, eventID, customerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links[[2]int64{eventID, customerID}] = true
	return nil
}

func (r *MemoryCustomerRepository) List(ctx context.Context) ([]*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	customers := make([]*domain.Customer, 0, len(r.customers))
	for _, customer := range r.customers {
		cp := *customer
		customers = append(customers, &cp)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	return customers, nil
}
