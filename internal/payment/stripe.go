package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// TaxLineName labels the synthetic line carrying the 2% charge.
const TaxLineName = "Tax (2%)"

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeConfig struct {
	APIKey   string
	Currency string
	BaseURL  string
	Backends *stripe.Backends

	sessions stripeSessionAPI
}

// Stripe creates hosted checkout sessions. Confirmation arrives through the
// webhook, so it has no Verify. A Stripe built without an API key stays
// registered and fails every Initiate with a GatewayError.
type Stripe struct {
	sessions stripeSessionAPI
	currency string
	baseURL  string
	logger   *slog.Logger
}

func NewStripe(cfg StripeConfig, logger *slog.Logger) *Stripe {
	sessions := cfg.sessions
	if apiKey := strings.TrimSpace(cfg.APIKey); sessions == nil && apiKey != "" {
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "npr"
	}
	return &Stripe{
		sessions: sessions,
		currency: currency,
		baseURL:  cfg.BaseURL,
		logger:   logging.OrDiscard(logger),
	}
}

func (s *Stripe) Method() domain.PaymentMethod { return domain.PaymentStripe }

// Initiate opens a checkout session priced from the order's lines plus the
// tax line. Amounts are sent in minor units.
func (s *Stripe) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	if s.sessions == nil {
		return Initiation{}, gatewayErr(domain.PaymentStripe, "initiate", errors.New("api key not configured"))
	}
	origin := originOr(req.Origin, s.baseURL)
	o := req.Order

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(origin + "/order-placed"),
		CancelURL:         stripe.String(origin + "/cart"),
		ClientReferenceID: stripe.String(o.ID),
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-session-" + o.ID)

	metadata := map[string]string{"orderId": o.ID, "userId": o.BuyerID}
	params.Metadata = metadata
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: metadata}

	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(o.Lines)+1)
	for _, l := range o.Lines {
		lines = append(lines, s.lineItem(l.Name, l.UnitPrice, int64(l.Quantity)))
	}
	lines = append(lines, s.lineItem(TaxLineName, o.TaxAmount, 1))
	params.LineItems = lines

	session, err := s.sessions.New(params)
	if err != nil {
		return Initiation{}, gatewayErr(domain.PaymentStripe, "initiate", fmt.Errorf("create checkout session: %w", err))
	}
	if session == nil || session.URL == "" {
		return Initiation{}, gatewayErr(domain.PaymentStripe, "initiate", errors.New("checkout session has no url"))
	}

	s.logger.InfoContext(ctx, "stripe checkout session created",
		slog.String("order_id", o.ID),
		slog.String("session_id", session.ID),
	)
	return Initiation{Method: domain.PaymentStripe, RedirectURL: session.URL, SessionID: session.ID}, nil
}

func (s *Stripe) lineItem(name string, unitAmount, quantity int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(quantity),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(s.currency),
			UnitAmount: stripe.Int64(unitAmount * 100),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}

// ErrInvalidSignature is returned when a webhook payload fails signature checks.
var ErrInvalidSignature = errors.New("stripe: invalid webhook signature")

// Confirmation is a provider-pushed statement that an order was paid.
type Confirmation struct {
	OrderID           string
	ProviderReference string
}

// StripeWebhook authenticates Stripe event deliveries.
type StripeWebhook struct {
	secret    string
	tolerance time.Duration
}

func NewStripeWebhook(secret string) *StripeWebhook {
	return &StripeWebhook{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Parse verifies the signature header and extracts a confirmation from a
// paid checkout.session.completed event. Other event types yield ok=false.
func (w *StripeWebhook) Parse(payload []byte, signature string) (Confirmation, bool, error) {
	if w.secret == "" {
		return Confirmation{}, false, gatewayErr(domain.PaymentStripe, "webhook", errors.New("webhook secret not configured"))
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		Tolerance:                w.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Confirmation{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted || event.Data == nil {
		return Confirmation{}, false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Confirmation{}, false, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Confirmation{}, false, nil
	}
	orderID := session.Metadata["orderId"]
	if orderID == "" {
		orderID = session.ClientReferenceID
	}
	if orderID == "" {
		return Confirmation{}, false, domain.Invalid(domain.ErrMissingParams, "checkout session carries no order id")
	}
	ref := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref = session.PaymentIntent.ID
	}
	return Confirmation{OrderID: orderID, ProviderReference: ref}, true, nil
}
