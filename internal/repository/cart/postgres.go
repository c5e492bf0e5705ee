package cart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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

// Get returns the buyer's cart. A buyer without rows has an empty cart.
func (r *postgresRepo) Get(ctx context.Context, buyerID string) (domain.Cart, error) {
	const q = `
SELECT product_id::text, quantity, updated_at
FROM cart_items
WHERE user_id = $1
ORDER BY updated_at, product_id
`
	rows, err := r.pool.Query(ctx, q, buyerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "cart repo: get", slog.String("buyer_id", buyerID), slog.Any("error", err))
		return domain.Cart{}, err
	}
	defer rows.Close()

	cart := domain.Cart{BuyerID: buyerID, Lines: []domain.CartLine{}}
	for rows.Next() {
		var (
			line      domain.CartLine
			updatedAt time.Time
		)
		if err := rows.Scan(&line.ProductID, &line.Quantity, &updatedAt); err != nil {
			return domain.Cart{}, err
		}
		if updatedAt.After(cart.UpdatedAt) {
			cart.UpdatedAt = updatedAt
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// Replace swaps the buyer's cart contents for lines. Lines for the same
// product are summed since the store keeps one row per product.
func (r *postgresRepo) Replace(ctx context.Context, buyerID string, lines []domain.CartLine) (domain.Cart, error) {
	merged := mergeLines(lines)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, buyerID); err != nil {
		return domain.Cart{}, fmt.Errorf("clear cart items: %w", err)
	}
	now := time.Now().UTC()
	for _, l := range merged {
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_items (user_id, product_id, quantity, updated_at)
VALUES ($1, $2::uuid, $3, $4)
`, buyerID, l.ProductID, l.Quantity, now); err != nil {
			return domain.Cart{}, fmt.Errorf("insert cart item %s: %w", l.ProductID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Cart{}, fmt.Errorf("commit transaction: %w", err)
	}
	r.logger.DebugContext(ctx, "cart repo: replaced", slog.String("buyer_id", buyerID), slog.Int("lines", len(merged)))
	return domain.Cart{BuyerID: buyerID, Lines: merged, UpdatedAt: now}, nil
}

// Clear empties the cart and reports how many rows were removed. Clearing an
// empty cart is not an error.
func (r *postgresRepo) Clear(ctx context.Context, buyerID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, buyerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "cart repo: clear", slog.String("buyer_id", buyerID), slog.Any("error", err))
		return 0, err
	}
	r.logger.InfoContext(ctx, "cart repo: cleared", slog.String("buyer_id", buyerID), slog.Int64("rows", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

func mergeLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	idx := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
