// Package checkout drives an order from a priced cart to a confirmed payment.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/idempotency"
	"storefront/internal/logging"
	"storefront/internal/payment"
	"storefront/internal/service/ledger"
)

type pricer interface {
	Price(ctx context.Context, lines []domain.CartLine) (domain.PriceSummary, error)
}

type orderLedger interface {
	Create(ctx context.Context, in ledger.CreateInput) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	Transition(ctx context.Context, id string, ev ledger.PaymentConfirmed) (*domain.Order, ledger.TransitionResult, error)
	ClearCartOnce(ctx context.Context, buyerID string) error
}

type addressLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Address, error)
}

type gatewayResolver interface {
	Gateway(m domain.PaymentMethod) (payment.Gateway, error)
	Verifier(m domain.PaymentMethod) (payment.Verifier, bool)
}

type idempotencyStore interface {
	Reserve(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type eventPublisher interface {
	OrderCreated(ctx context.Context, o domain.Order)
	OrderConfirmed(ctx context.Context, o domain.Order)
}

// Deps wires the controller. Idempotency and Events are optional.
type Deps struct {
	Pricer          pricer
	Ledger          orderLedger
	Addresses       addressLookup
	Gateways        gatewayResolver
	Idempotency     idempotencyStore
	Events          eventPublisher
	Currency        string
	ProviderTimeout time.Duration
	Logger          *slog.Logger
}

type Service struct {
	pricer          pricer
	ledger          orderLedger
	addresses       addressLookup
	gateways        gatewayResolver
	idem            idempotencyStore
	events          eventPublisher
	currency        string
	providerTimeout time.Duration
	logger          *slog.Logger
}

func New(d Deps) *Service {
	return &Service{
		pricer:          d.Pricer,
		ledger:          d.Ledger,
		addresses:       d.Addresses,
		gateways:        d.Gateways,
		idem:            d.Idempotency,
		events:          d.Events,
		currency:        strings.ToLower(d.Currency),
		providerTimeout: d.ProviderTimeout,
		logger:          logging.OrDiscard(d.Logger),
	}
}

type Input struct {
	BuyerID        string
	AddressID      string
	Lines          []domain.CartLine
	Method         domain.PaymentMethod
	Origin         string
	IdempotencyKey string
}

type Result struct {
	Order      domain.Order
	Initiation *payment.Initiation
	// Replayed is set when an idempotency key matched an earlier order.
	Replayed bool
}

type CallbackResult struct {
	Order            domain.Order
	Verified         bool
	AlreadyProcessed bool
	Reason           string
}

// Checkout validates the cart and address, prices the cart, records the order
// and starts payment. A failed initiation leaves the order in place.
func (s *Service) Checkout(ctx context.Context, in Input) (*Result, error) {
	log := logging.FromCtx(ctx, s.logger).With(slog.String("payment_method", string(in.Method)))

	if strings.TrimSpace(in.BuyerID) == "" {
		return nil, &domain.AuthError{Message: "You must be logged in to place an order", Err: domain.ErrUnauthenticated}
	}
	if strings.TrimSpace(in.AddressID) == "" {
		return nil, domain.Invalid(domain.ErrMissingAddress, "Address is required")
	}
	if len(in.Lines) == 0 {
		return nil, domain.Invalid(domain.ErrEmptyCart, "No items in cart")
	}
	gw, err := s.gateways.Gateway(in.Method)
	if err != nil {
		return nil, domain.Invalid(err, "Unsupported payment method")
	}

	var idemKey string
	if s.idem != nil && strings.TrimSpace(in.IdempotencyKey) != "" {
		idemKey = idempotency.Key(in.IdempotencyKey, in.Method, in.AddressID, in.Lines)
		res, replayed, err := s.replay(ctx, log, in, idemKey, gw)
		if err != nil || replayed {
			return res, err
		}
		defer s.release(ctx, log, in.BuyerID, idemKey)
	}

	addr, err := s.addresses.GetByID(ctx, in.AddressID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && addr.UserID != in.BuyerID) {
		return nil, domain.Invalid(domain.ErrMissingAddress, "Address not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}

	summary, err := s.pricer.Price(ctx, in.Lines)
	if err != nil {
		checkoutsTotal.WithLabelValues(string(in.Method), "rejected").Inc()
		return nil, err
	}

	order, err := s.ledger.Create(ctx, ledger.CreateInput{
		BuyerID:  in.BuyerID,
		Address:  *addr,
		Summary:  summary,
		Method:   in.Method,
		Currency: s.currency,
	})
	if err != nil {
		checkoutsTotal.WithLabelValues(string(in.Method), "failed").Inc()
		return nil, err
	}
	log = log.With(slog.String("order_id", order.ID))
	log.InfoContext(ctx, "order created", slog.Int64("amount", order.Amount), slog.String("status", string(order.Status)))

	// The order is committed; follow-up writes outlive the request.
	committed := context.WithoutCancel(ctx)
	if idemKey != "" {
		if err := s.idem.Remember(committed, in.BuyerID, idemKey, order.ID); err != nil {
			log.WarnContext(ctx, "remember idempotency key failed", slog.String("error", err.Error()))
		}
	}
	if s.events != nil {
		s.events.OrderCreated(committed, *order)
	}

	res := &Result{Order: *order}
	if order.PaymentMethod == domain.PaymentCOD {
		if err := s.ledger.ClearCartOnce(committed, in.BuyerID); err != nil {
			log.ErrorContext(ctx, "clear cart after cod order failed", slog.String("error", err.Error()))
		}
		checkoutsTotal.WithLabelValues(string(in.Method), "created").Inc()
		return res, nil
	}

	initiation, err := s.initiate(ctx, gw, payment.InitiateRequest{Order: *order, Summary: summary, Origin: in.Origin})
	if err != nil {
		checkoutsTotal.WithLabelValues(string(in.Method), "failed").Inc()
		log.ErrorContext(ctx, "payment initiation failed", slog.String("error", err.Error()))
		return nil, err
	}
	res.Initiation = &initiation
	checkoutsTotal.WithLabelValues(string(in.Method), "created").Inc()
	return res, nil
}

// replay returns the order an earlier request with the same key produced.
// Redis trouble is logged and the checkout proceeds without deduplication.
func (s *Service) replay(ctx context.Context, log *slog.Logger, in Input, key string, gw payment.Gateway) (*Result, bool, error) {
	orderID, found, err := s.idem.Recall(ctx, in.BuyerID, key)
	if err != nil {
		log.WarnContext(ctx, "idempotency lookup failed", slog.String("error", err.Error()))
		return nil, false, nil
	}
	if !found {
		ok, err := s.idem.Reserve(ctx, in.BuyerID, key)
		if err != nil {
			log.WarnContext(ctx, "idempotency reserve failed", slog.String("error", err.Error()))
			return nil, false, nil
		}
		if !ok {
			return nil, true, domain.ErrRequestInFlight
		}
		// An earlier request may have finished between the lookup and the reservation.
		orderID, found, err = s.idem.Recall(ctx, in.BuyerID, key)
		if err != nil {
			log.WarnContext(ctx, "idempotency lookup failed", slog.String("error", err.Error()))
		}
		if !found {
			return nil, false, nil
		}
		s.release(ctx, log, in.BuyerID, key)
	}

	order, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, true, err
	}
	checkoutsTotal.WithLabelValues(string(in.Method), "replayed").Inc()
	log.InfoContext(ctx, "checkout replayed", slog.String("order_id", order.ID))

	res := &Result{Order: *order, Replayed: true}
	if order.PaymentMethod == domain.PaymentCOD || order.Status != domain.OrderStatusPending {
		return res, true, nil
	}
	initiation, err := s.initiate(ctx, gw, payment.InitiateRequest{
		Order: *order,
		Summary: domain.PriceSummary{
			Lines:     order.Lines,
			Subtotal:  order.Subtotal,
			TaxAmount: order.TaxAmount,
			Total:     order.Amount,
		},
		Origin: in.Origin,
	})
	if err != nil {
		return nil, true, err
	}
	res.Initiation = &initiation
	return res, true, nil
}

func (s *Service) release(ctx context.Context, log *slog.Logger, scope, key string) {
	if err := s.idem.Release(context.WithoutCancel(ctx), scope, key); err != nil {
		log.WarnContext(ctx, "release idempotency key failed", slog.String("error", err.Error()))
	}
}

func (s *Service) initiate(ctx context.Context, gw payment.Gateway, req payment.InitiateRequest) (payment.Initiation, error) {
	ctx, cancel := s.withProviderTimeout(ctx)
	defer cancel()
	return gw.Initiate(ctx, req)
}

// HandleCallback verifies a redirect provider's callback and confirms the
// order. A repeated callback for a confirmed order succeeds without asking
// the provider again.
func (s *Service) HandleCallback(ctx context.Context, method domain.PaymentMethod, params payment.CallbackParams) (*CallbackResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	verifier, ok := s.gateways.Verifier(method)
	if !ok {
		return nil, domain.Invalid(domain.ErrUnsupported, "Unsupported payment method")
	}
	log := logging.FromCtx(ctx, s.logger).With(
		slog.String("order_id", params.OrderID),
		slog.String("payment_method", string(method)),
	)

	order, err := s.ledger.Get(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != method {
		return nil, domain.Invalid(domain.ErrUnsupported, "Payment method does not match order")
	}
	switch order.Status {
	case domain.OrderStatusConfirmed:
		callbacksTotal.WithLabelValues(string(method), "already_processed").Inc()
		log.InfoContext(ctx, "callback for confirmed order ignored")
		return &CallbackResult{Order: *order, Verified: true, AlreadyProcessed: true}, nil
	case domain.OrderStatusPending:
	default:
		return nil, domain.Invalid(domain.ErrUnsupported, "Order is not awaiting payment")
	}

	if !amountMatches(params.Amount, order.Amount) {
		callbacksTotal.WithLabelValues(string(method), "rejected").Inc()
		log.WarnContext(ctx, "callback amount mismatch", slog.String("amount", params.Amount), slog.Int64("expected", order.Amount))
		return &CallbackResult{Order: *order, Reason: "amount mismatch"}, nil
	}

	vctx, cancel := s.withProviderTimeout(ctx)
	v, err := verifier.Verify(vctx, params)
	cancel()
	if err != nil {
		callbacksTotal.WithLabelValues(string(method), "failed").Inc()
		log.ErrorContext(ctx, "payment verification failed", slog.String("error", err.Error()))
		return nil, err
	}
	if !v.Verified {
		callbacksTotal.WithLabelValues(string(method), "rejected").Inc()
		return &CallbackResult{Order: *order, Reason: v.Reason}, nil
	}
	return s.confirm(ctx, log, method, order.ID, v.ProviderReference)
}

// OnProviderConfirmed applies a confirmation pushed by the provider, such as
// a signed webhook. The provider has already settled the payment.
func (s *Service) OnProviderConfirmed(ctx context.Context, method domain.PaymentMethod, orderID, reference string) (*CallbackResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, domain.Invalid(domain.ErrMissingParams, "Missing order id")
	}
	log := logging.FromCtx(ctx, s.logger).With(
		slog.String("order_id", orderID),
		slog.String("payment_method", string(method)),
	)
	order, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != method {
		callbacksTotal.WithLabelValues(string(method), "rejected").Inc()
		log.WarnContext(ctx, "provider confirmation for order of another payment method", slog.String("order_method", string(order.PaymentMethod)))
		return nil, domain.Invalid(domain.ErrUnsupported, "Payment method does not match order")
	}
	if order.Status == domain.OrderStatusConfirmed {
		callbacksTotal.WithLabelValues(string(method), "already_processed").Inc()
		return &CallbackResult{Order: *order, Verified: true, AlreadyProcessed: true}, nil
	}
	return s.confirm(ctx, log, method, orderID, reference)
}

func (s *Service) confirm(ctx context.Context, log *slog.Logger, method domain.PaymentMethod, orderID, reference string) (*CallbackResult, error) {
	updated, result, err := s.ledger.Transition(ctx, orderID, ledger.PaymentConfirmed{Reference: reference})
	if err != nil {
		callbacksTotal.WithLabelValues(string(method), "failed").Inc()
		return nil, err
	}
	if result != ledger.Applied {
		callbacksTotal.WithLabelValues(string(method), "already_processed").Inc()
		return &CallbackResult{Order: *updated, Verified: true, AlreadyProcessed: true}, nil
	}

	callbacksTotal.WithLabelValues(string(method), "confirmed").Inc()
	log.InfoContext(ctx, "payment confirmed", slog.String("reference", reference))

	// Retries see AlreadyProcessed, so this is the only chance to clear the cart.
	committed := context.WithoutCancel(ctx)
	if err := s.ledger.ClearCartOnce(committed, updated.BuyerID); err != nil {
		log.ErrorContext(ctx, "clear cart after confirmation failed", slog.String("error", err.Error()))
	}
	if s.events != nil {
		s.events.OrderConfirmed(committed, *updated)
	}
	return &CallbackResult{Order: *updated, Verified: true}, nil
}

func (s *Service) withProviderTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.providerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.providerTimeout)
}

// amountMatches accepts the provider's decimal rendering ("1020", "1020.0").
func amountMatches(raw string, want int64) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false
	}
	return math.Abs(f-float64(want)) < 0.005
}
