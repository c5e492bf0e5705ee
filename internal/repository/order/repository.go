package order

import (
	"context"
	"time"

	"storefront/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	// ConfirmPayment moves a Pending order to Confirmed in one conditional
	// statement. It reports false when the order was not Pending (or does not
	// exist) and nothing changed.
	ConfirmPayment(ctx context.Context, id, reference string, at time.Time) (bool, error)
}
