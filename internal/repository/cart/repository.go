package cart

import (
	"context"

	"storefront/internal/domain"
)

// Repository is the per-buyer cart store.
type Repository interface {
	Get(ctx context.Context, buyerID string) (domain.Cart, error)
	Replace(ctx context.Context, buyerID string, lines []domain.CartLine) (domain.Cart, error)
	Clear(ctx context.Context, buyerID string) (int64, error)
}
