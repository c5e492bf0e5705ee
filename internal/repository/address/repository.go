package address

import (
	"context"

	"storefront/internal/domain"
)

// Repository only reads addresses. They are created by the account service.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Address, error)
}
