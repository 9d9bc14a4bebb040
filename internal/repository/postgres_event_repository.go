package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitemilenibarros/backend/internal/domain"
)

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	query := `
		SELECT id, title, COALESCE(description, ''), COALESCE(address, ''),
		       price_value_online, price_value_presencial, limit_vagas_presencial,
		       COALESCE(stripe_product_id, ''), created_at, updated_at
		FROM events
		WHERE id = $1
	`
	event := &domain.Event{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Address,
		&event.PriceValueOnline,
		&event.PriceValueOnsite,
		&event.LimitOnsiteSlots,
		&event.StripeProductID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

func (r *PostgresEventRepository) SetStripeProduct(ctx context.Context, id int64, productID string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE events SET stripe_product_id = $2, updated_at = NOW() WHERE id = $1`,
		id, productID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *PostgresEventRepository) SetPrice(ctx context.Context, id int64, modality domain.Modality, amount int64) error {
	var column string
	switch modality {
	case domain.ModalityOnsite:
		column = "price_value_presencial"
	case domain.ModalityOnline:
		column = "price_value_online"
	default:
		return domain.ErrInvalidModality
	}

	result, err := r.pool.Exec(ctx,
		`UPDATE events SET `+column+` = $2, updated_at = NOW() WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}
