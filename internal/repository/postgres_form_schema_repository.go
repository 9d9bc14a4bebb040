package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitemilenibarros/backend/internal/schema"
)

// PostgresFormSchemaRepository implements FormSchemaRepository using PostgreSQL
type PostgresFormSchemaRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFormSchemaRepository creates a new PostgresFormSchemaRepository
func NewPostgresFormSchemaRepository(pool *pgxpool.Pool) *PostgresFormSchemaRepository {
	return &PostgresFormSchemaRepository{pool: pool}
}

func (r *PostgresFormSchemaRepository) Get(ctx context.Context, eventID int64, modality string) (*schema.Schema, error) {
	// Prefer the modality-specific schema, fall back to the event's generic
	// one (empty modality).
	query := `
		SELECT schema
		FROM form_schemas
		WHERE event_id = $1 AND modality IN ($2, '')
		ORDER BY modality DESC
		LIMIT 1
	`
	var raw []byte
	err := r.pool.QueryRow(ctx, query, eventID, modality).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSchemaNotFound
		}
		return nil, err
	}
	return schema.Parse(raw)
}

func (r *PostgresFormSchemaRepository) Upsert(ctx context.Context, eventID int64, modality string, s *schema.Schema) error {
	// Store the full document so the bytes round-trip through schema.Parse.
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO form_schemas (event_id, modality, schema, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (event_id, modality)
		DO UPDATE SET schema = EXCLUDED.schema, updated_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query, eventID, modality, raw)
	return err
}
