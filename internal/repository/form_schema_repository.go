package repository

import (
	"context"
	"errors"

	"github.com/sitemilenibarros/backend/internal/schema"
)

// ErrSchemaNotFound is returned when no schema exists for an event source.
// Callers treat the absence of a schema as "unconstrained", not as a failure.
var ErrSchemaNotFound = errors.New("form schema not found")

// FormSchemaRepository stores per-event validation schemas, optionally
// specialized per modality.
type FormSchemaRepository interface {
	// Get retrieves the schema for (eventID, modality). When no
	// modality-specific schema exists it falls back to the event's generic
	// schema (empty modality). Returns ErrSchemaNotFound when neither exists.
	Get(ctx context.Context, eventID int64, modality string) (*schema.Schema, error)

	// Upsert creates or replaces the schema for (eventID, modality)
	Upsert(ctx context.Context, eventID int64, modality string, s *schema.Schema) error
}
