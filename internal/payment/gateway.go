// Package payment holds one adapter per payment provider behind a common
// capability interface. Redirect providers also implement Verifier.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
)

// InitiateRequest is everything an adapter needs to start a payment.
type InitiateRequest struct {
	Order   domain.Order
	Summary domain.PriceSummary
	// Origin is the storefront origin the buyer checked out from. Adapters
	// fall back to their configured base URL when it is empty.
	Origin string
}

// Initiation is the ephemeral payload handed back to the buyer.
type Initiation struct {
	Method      domain.PaymentMethod
	Esewa       *EsewaForm
	RedirectURL string
	SessionID   string
}

// CallbackParams are the values a redirect provider hands back to the buyer.
type CallbackParams struct {
	OrderID       string
	TransactionID string
	Amount        string
	Reference     string
	ProductCode   string
}

// Validate fails when any parameter is blank.
func (p CallbackParams) Validate() error {
	for _, v := range []string{p.OrderID, p.TransactionID, p.Amount, p.Reference, p.ProductCode} {
		if strings.TrimSpace(v) == "" {
			return domain.Invalid(domain.ErrMissingParams, "Missing required payment parameters")
		}
	}
	return nil
}

// Verification is the provider's answer. A negative answer is not an error.
type Verification struct {
	Verified          bool
	ProviderReference string
	Reason            string
}

type Gateway interface {
	Method() domain.PaymentMethod
	Initiate(ctx context.Context, req InitiateRequest) (Initiation, error)
}

type Verifier interface {
	Verify(ctx context.Context, params CallbackParams) (Verification, error)
}

// Registry resolves adapters by payment method.
type Registry struct {
	gateways map[domain.PaymentMethod]Gateway
}

func NewRegistry(gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[domain.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		if g == nil {
			return nil, errors.New("payment: nil gateway")
		}
		if _, dup := r.gateways[g.Method()]; dup {
			return nil, fmt.Errorf("payment: duplicate gateway for %s", g.Method())
		}
		r.gateways[g.Method()] = g
	}
	return r, nil
}

func (r *Registry) Gateway(m domain.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupported, m)
	}
	return g, nil
}

// Verifier returns the verification capability of the method's adapter, if any.
func (r *Registry) Verifier(m domain.PaymentMethod) (Verifier, bool) {
	g, ok := r.gateways[m]
	if !ok {
		return nil, false
	}
	v, ok := g.(Verifier)
	return v, ok
}

func gatewayErr(m domain.PaymentMethod, op string, err error) error {
	return &domain.GatewayError{Provider: m, Op: op, Err: err}
}

func originOr(origin, fallback string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return strings.TrimRight(fallback, "/")
	}
	return origin
}
