// Package ledger owns order records and their payment lifecycle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type TransitionResult int

const (
	Applied TransitionResult = iota + 1
	// AlreadyProcessed means the order was no longer Pending; nothing changed.
	AlreadyProcessed
)

func (r TransitionResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}

// PaymentConfirmed is the only event that moves an order after creation.
type PaymentConfirmed struct {
	Reference string
	At        time.Time
}

type orderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	ConfirmPayment(ctx context.Context, id, reference string, at time.Time) (bool, error)
}

type cartClearer interface {
	Clear(ctx context.Context, buyerID string) (int64, error)
}

type Service struct {
	orders orderStore
	carts  cartClearer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func New(orders orderStore, carts cartClearer, logger *slog.Logger) *Service {
	return &Service{
		orders: orders,
		carts:  carts,
		logger: logging.OrDiscard(logger),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

type CreateInput struct {
	BuyerID  string
	Address  domain.Address
	Summary  domain.PriceSummary
	Method   domain.PaymentMethod
	Currency string
}

// Create persists a new order. Its amount is the summary total and is never
// recomputed afterwards.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if strings.TrimSpace(in.BuyerID) == "" {
		return nil, errors.New("ledger: buyer id required")
	}
	if len(in.Summary.Lines) == 0 {
		return nil, errors.New("ledger: order needs at least one line")
	}
	if in.Summary.Total != in.Summary.Subtotal+in.Summary.TaxAmount {
		return nil, fmt.Errorf("ledger: inconsistent summary total %d", in.Summary.Total)
	}
	if _, err := domain.ParsePaymentMethod(string(in.Method)); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	now := s.now()
	o := &domain.Order{
		ID:            s.newID(),
		BuyerID:       in.BuyerID,
		AddressID:     in.Address.ID,
		Address:       in.Address,
		Lines:         in.Summary.Lines,
		Subtotal:      in.Summary.Subtotal,
		TaxAmount:     in.Summary.TaxAmount,
		Amount:        in.Summary.Total,
		Currency:      in.Currency,
		PaymentMethod: in.Method,
		Status:        in.Method.InitialStatus(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("ledger: create order: %w", err)
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Missing(domain.ErrOrderNotFound, "Order not found")
	}
	return o, err
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAll(ctx)
}

// Transition applies a payment confirmation if the order is still Pending.
// Repeated or late confirmations report AlreadyProcessed and change nothing.
func (s *Service) Transition(ctx context.Context, id string, ev PaymentConfirmed) (*domain.Order, TransitionResult, error) {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	applied, err := s.orders.ConfirmPayment(ctx, id, ev.Reference, at)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: confirm order %s: %w", id, err)
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	result := AlreadyProcessed
	if applied {
		result = Applied
	}
	s.logger.InfoContext(ctx, "order transition",
		slog.String("order_id", id),
		slog.String("status", string(o.Status)),
		slog.String("result", result.String()),
	)
	return o, result, nil
}

// ClearCartOnce empties the buyer's cart. Callers invoke it once per applied
// lifecycle event; the clear itself is idempotent.
func (s *Service) ClearCartOnce(ctx context.Context, buyerID string) error {
	n, err := s.carts.Clear(ctx, buyerID)
	if err != nil {
		return fmt.Errorf("ledger: clear cart for %s: %w", buyerID, err)
	}
	s.logger.DebugContext(ctx, "cart cleared", slog.String("buyer_id", buyerID), slog.Int64("lines", n))
	return nil
}
