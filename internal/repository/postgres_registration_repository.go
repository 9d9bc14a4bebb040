package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitemilenibarros/backend/internal/domain"
)

const registrationColumns = `
	id, event_id, form_data, payment_status,
	COALESCE(payment_id, '') AS payment_id,
	COALESCE(preference_id, '') AS preference_id,
	payment_created_at, payment_updated_at, provider_updated_at,
	created_at, updated_at, deleted_at
`

// PostgresRegistrationRepository implements RegistrationRepository using PostgreSQL
type PostgresRegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistrationRepository creates a new PostgresRegistrationRepository
func NewPostgresRegistrationRepository(pool *pgxpool.Pool) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{pool: pool}
}

// Create persists a new registration and assigns its id
func (r *PostgresRegistrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO forms (event_id, form_data, payment_status, payment_created_at, payment_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		reg.EventID,
		reg.Payload,
		reg.PaymentStatus,
		reg.PaymentCreatedAt,
		reg.PaymentUpdatedAt,
		reg.CreatedAt,
		reg.UpdatedAt,
	).Scan(&reg.ID)
}

// CreateWithCapacity inserts an onsite registration while holding an advisory
// lock keyed by (event, modality), so the slot count and the insert form one
// atomic unit and concurrent submissions serialize instead of racing past the
// limit.
func (r *PostgresRegistrationRepository) CreateWithCapacity(ctx context.Context, reg *domain.Registration, limit int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("forms-capacity-%d-%s", reg.EventID, reg.Modality())
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("failed to acquire capacity lock: %w", err)
	}

	var count int
	countQuery := `
		SELECT COUNT(*)
		FROM forms
		WHERE event_id = $1
		  AND deleted_at IS NULL
		  AND form_data->>'modality' = $2
		  AND payment_status IN ('pending', 'approved')
	`
	if err := tx.QueryRow(ctx, countQuery, reg.EventID, string(reg.Modality())).Scan(&count); err != nil {
		return err
	}
	if count >= limit {
		return domain.ErrCapacityExceeded
	}

	insert := `
		INSERT INTO forms (event_id, form_data, payment_status, payment_created_at, payment_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = tx.QueryRow(ctx, insert,
		reg.EventID,
		reg.Payload,
		reg.PaymentStatus,
		reg.PaymentCreatedAt,
		reg.PaymentUpdatedAt,
		reg.CreatedAt,
		reg.UpdatedAt,
	).Scan(&reg.ID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a registration by id
func (r *PostgresRegistrationRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM forms WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByPaymentID retrieves the registration carrying the given payment id
func (r *PostgresRegistrationRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM forms WHERE payment_id = $1 AND deleted_at IS NULL`
	return r.scanOne(r.pool.QueryRow(ctx, query, paymentID))
}

// List retrieves registrations newest first
func (r *PostgresRegistrationRepository) List(ctx context.Context, page, limit int) ([]*domain.Registration, int, error) {
	return r.list(ctx, `deleted_at IS NULL`, nil, page, limit)
}

// ListByEvent retrieves an event's registrations newest first
func (r *PostgresRegistrationRepository) ListByEvent(ctx context.Context, eventID int64, page, limit int) ([]*domain.Registration, int, error) {
	return r.list(ctx, `event_id = $1 AND deleted_at IS NULL`, []any{eventID}, page, limit)
}

func (r *PostgresRegistrationRepository) list(ctx context.Context, where string, args []any, page, limit int) ([]*domain.Registration, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	countQuery := `SELECT COUNT(*) FROM forms WHERE ` + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM forms WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		registrationColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	return regs, total, rows.Err()
}

// ListStalePending retrieves pending registrations created before cutoff that
// carry a preference but no payment id
func (r *PostgresRegistrationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT ` + registrationColumns + `
		FROM forms
		WHERE payment_status = 'pending'
		  AND deleted_at IS NULL
		  AND COALESCE(preference_id, '') <> ''
		  AND payment_id IS NULL
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// CountActiveByModality counts slot-consuming registrations for one modality
func (r *PostgresRegistrationRepository) CountActiveByModality(ctx context.Context, eventID int64, modality domain.Modality) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM forms
		WHERE event_id = $1
		  AND deleted_at IS NULL
		  AND form_data->>'modality' = $2
		  AND payment_status IN ('pending', 'approved')
	`
	var count int
	err := r.pool.QueryRow(ctx, query, eventID, string(modality)).Scan(&count)
	return count, err
}

// Update persists the mutable payment fields of a registration
func (r *PostgresRegistrationRepository) Update(ctx context.Context, reg *domain.Registration) error {
	query := `
		UPDATE forms
		SET payment_status = $2, payment_id = $3, preference_id = $4,
		    payment_updated_at = $5, provider_updated_at = $6, updated_at = $7
		WHERE id = $1
	`
	reg.UpdatedAt = time.Now()
	result, err := r.pool.Exec(ctx, query,
		reg.ID,
		reg.PaymentStatus,
		nullIfEmpty(reg.PaymentID),
		nullIfEmpty(reg.PreferenceID),
		reg.PaymentUpdatedAt,
		reg.ProviderUpdatedAt,
		reg.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

// SetPreference records the provider-side preference id for the registration
func (r *PostgresRegistrationRepository) SetPreference(ctx context.Context, id int64, preferenceID string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE forms SET preference_id = $2, updated_at = $3 WHERE id = $1`,
		id, preferenceID, time.Now(),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

// Reconcile applies a reconciliation under a row-level lock. The SELECT ...
// FOR UPDATE serializes concurrent webhook deliveries for the same
// registration; the apply function decides whether anything changes.
func (r *PostgresRegistrationRepository) Reconcile(ctx context.Context, id int64, apply func(*domain.Registration) (bool, error)) (*domain.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + registrationColumns + ` FROM forms WHERE id = $1 FOR UPDATE`
	reg, err := r.scanOne(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	changed, err := apply(reg)
	if err != nil {
		return reg, err
	}
	if !changed {
		return reg, tx.Commit(ctx)
	}

	update := `
		UPDATE forms
		SET payment_status = $2, payment_id = $3, payment_updated_at = $4,
		    provider_updated_at = $5, updated_at = $6
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update,
		reg.ID,
		reg.PaymentStatus,
		nullIfEmpty(reg.PaymentID),
		reg.PaymentUpdatedAt,
		reg.ProviderUpdatedAt,
		reg.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return reg, tx.Commit(ctx)
}

// SoftDelete marks a registration deleted
func (r *PostgresRegistrationRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE forms SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now(),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

// Restore clears the soft-delete marker
func (r *PostgresRegistrationRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE forms SET deleted_at = NULL, updated_at = $2 WHERE id = $1 AND deleted_at IS NOT NULL`,
		id, time.Now(),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		// Distinguish "missing" from "not deleted"
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM forms WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return domain.ErrNotDeleted
		}
		return domain.ErrRegistrationNotFound
	}
	return nil
}

func (r *PostgresRegistrationRepository) scanOne(row pgx.Row) (*domain.Registration, error) {
	reg, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *PostgresRegistrationRepository) scanRow(row pgx.Row) (*domain.Registration, error) {
	reg := &domain.Registration{}
	err := row.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.Payload,
		&reg.PaymentStatus,
		&reg.PaymentID,
		&reg.PreferenceID,
		&reg.PaymentCreatedAt,
		&reg.PaymentUpdatedAt,
		&reg.ProviderUpdatedAt,
		&reg.CreatedAt,
		&reg.UpdatedAt,
		&reg.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// nullIfEmpty returns nil for empty strings, otherwise the value
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
