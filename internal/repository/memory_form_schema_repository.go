package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/sitemilenibarros/backend/internal/schema"
)

// MemoryFormSchemaRepository is an in-memory FormSchemaRepository for tests
type MemoryFormSchemaRepository struct {
	mu      sync.Mutex
	schemas map[string]*schema.Schema
}

// NewMemoryFormSchemaRepository creates an empty in-memory repository
func NewMemoryFormSchemaRepository() *MemoryFormSchemaRepository {
	return &MemoryFormSchemaRepository{schemas: make(map[string]*schema.Schema)}
}

func schemaKey(eventID int64, modality string) string {
	return fmt.Sprintf("%d:%s", eventID, modality)
}

func (r *MemoryFormSchemaRepository) Get(ctx context.Context, eventID int64, modality string) (*schema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.schemas[schemaKey(eventID, modality)]; ok {
		return copySchema(s), nil
	}
	if s, ok := r.schemas[schemaKey(eventID, "")]; ok {
		return copySchema(s), nil
	}
	return nil, ErrSchemaNotFound
}

func (r *MemoryFormSchemaRepository) Upsert(ctx context.Context, eventID int64, modality string, s *schema.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas[schemaKey(eventID, modality)] = copySchema(s)
	return nil
}

func copySchema(s *schema.Schema) *schema.Schema {
	cp := &schema.Schema{Fields: make(map[string]schema.Field, len(s.Fields))}
	for name, field := range s.Fields {
		f := field
		f.Options = append([]string(nil), field.Options...)
		cp.Fields[name] = f
	}
	return cp
}
