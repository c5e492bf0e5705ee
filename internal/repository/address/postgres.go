package address

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   db.DBTX
	logger *slog.Logger
}

func NewPostgres(pool db.DBTX, logger *slog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrDiscard(logger)}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	key, ok := db.UUID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	const q = `
SELECT id::text, user_id, full_name, phone, pincode, area, city, state, created_at
FROM addresses
WHERE id = $1::uuid
`
	var a domain.Address
	err := r.pool.QueryRow(ctx, q, key).Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Pincode, &a.Area, &a.City, &a.State, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "address repo: get", slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	return &a, nil
}
