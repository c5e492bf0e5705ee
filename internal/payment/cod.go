package payment

import (
	"context"

	"storefront/internal/domain"
)

// COD needs no provider round trip; the order is already Placed.
type COD struct{}

func (COD) Method() domain.PaymentMethod { return domain.PaymentCOD }

func (COD) Initiate(context.Context, InitiateRequest) (Initiation, error) {
	return Initiation{Method: domain.PaymentCOD}, nil
}
