package product

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

const selectColumns = `
SELECT id::text, seller_id, name, COALESCE(description, ''), category, price, offer_price, image_urls, created_at
FROM products
`

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Category, &p.Price, &p.OfferPrice, &p.ImageURLs, &p.CreatedAt)
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, selectColumns+`ORDER BY created_at DESC`)
	if err != nil {
		r.logger.ErrorContext(ctx, "product repo: list", slog.Any("error", err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "product repo: list rows", slog.Any("error", err))
		return nil, err
	}
	r.logger.DebugContext(ctx, "product repo: list", slog.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	key, ok := db.UUID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	var p domain.Product
	err := scanProduct(r.pool.QueryRow(ctx, selectColumns+`WHERE id = $1::uuid`, key), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.DebugContext(ctx, "product repo: get not found", slog.String("id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "product repo: get", slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns the products that exist among ids, keyed by id. Ids that
// are not valid UUIDs simply do not match.
func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	keys := db.UUIDs(ids)
	if len(keys) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, selectColumns+`WHERE id = ANY($1::text[]::uuid[])`, keys)
	if err != nil {
		r.logger.ErrorContext(ctx, "product repo: get by ids", slog.Int("ids", len(ids)), slog.Any("error", err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "product repo: get by ids", slog.Int("requested", len(ids)), slog.Int("found", len(result)))
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, seller_id, name, description, category, price, offer_price, image_urls)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, NULLIF($4, ''), $5, $6, $7, COALESCE($8, '{}'::text[]))
ON CONFLICT (id) DO UPDATE SET
    seller_id = EXCLUDED.seller_id,
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    category = EXCLUDED.category,
    price = EXCLUDED.price,
    offer_price = EXCLUDED.offer_price,
    image_urls = EXCLUDED.image_urls
RETURNING id::text, created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.SellerID,
		product.Name,
		product.Description,
		product.Category,
		product.Price,
		product.OfferPrice,
		product.ImageURLs,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "product repo: upsert", slog.String("name", product.Name), slog.Any("error", err))
		return nil, err
	}
	r.logger.DebugContext(ctx, "product repo: upserted", slog.String("id", res.ID), slog.String("seller_id", res.SellerID))
	return &res, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	key, ok := db.UUID(id)
	if !ok {
		return domain.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1::uuid`, key)
	if err != nil {
		r.logger.ErrorContext(ctx, "product repo: delete", slog.String("id", id), slog.Any("error", err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.InfoContext(ctx, "product repo: deleted", slog.String("id", id))
	return nil
}
