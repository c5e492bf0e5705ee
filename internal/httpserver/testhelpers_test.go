package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/payment"
	"storefront/internal/service/checkout"
)

const testSecret = "test-secret"

type stubCheckout struct {
	lastInput    checkout.Input
	result       *checkout.Result
	err          error
	lastParams   payment.CallbackParams
	callback     *checkout.CallbackResult
	callbackErr  error
	confirmedID  string
	confirmedRef string
}

func (s *stubCheckout) Checkout(_ context.Context, in checkout.Input) (*checkout.Result, error) {
	s.lastInput = in
	return s.result, s.err
}

func (s *stubCheckout) HandleCallback(_ context.Context, _ domain.PaymentMethod, params payment.CallbackParams) (*checkout.CallbackResult, error) {
	s.lastParams = params
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.callback, s.callbackErr
}

func (s *stubCheckout) OnProviderConfirmed(_ context.Context, _ domain.PaymentMethod, orderID, ref string) (*checkout.CallbackResult, error) {
	s.confirmedID, s.confirmedRef = orderID, ref
	return s.callback, s.callbackErr
}

type stubOrders struct {
	byBuyer   []domain.Order
	all       []domain.Order
	lastBuyer string
}

func (s *stubOrders) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	s.lastBuyer = buyerID
	return s.byBuyer, nil
}

func (s *stubOrders) ListAll(context.Context) ([]domain.Order, error) { return s.all, nil }

type stubCarts struct {
	cart     domain.Cart
	replaced []domain.CartLine
	err      error
}

func (s *stubCarts) Get(_ context.Context, buyerID string) (domain.Cart, error) {
	s.cart.BuyerID = buyerID
	return s.cart, s.err
}

func (s *stubCarts) Replace(_ context.Context, buyerID string, lines []domain.CartLine) (domain.Cart, error) {
	s.replaced = lines
	return domain.Cart{BuyerID: buyerID, Lines: lines}, s.err
}

type stubProducts struct {
	products  []domain.Product
	deleted   string
	deleteErr error
}

func (s *stubProducts) List(context.Context) ([]domain.Product, error) { return s.products, nil }

func (s *stubProducts) Delete(_ context.Context, id string) error {
	s.deleted = id
	return s.deleteErr
}

type stubWebhook struct {
	conf    payment.Confirmation
	handled bool
	err     error
}

func (s *stubWebhook) Parse([]byte, string) (payment.Confirmation, bool, error) {
	return s.conf, s.handled, s.err
}

type testDeps struct {
	checkout *stubCheckout
	orders   *stubOrders
	carts    *stubCarts
	products *stubProducts
	webhook  *stubWebhook
}

func newTestRouter(t *testing.T) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	td := &testDeps{
		checkout: &stubCheckout{},
		orders:   &stubOrders{},
		carts:    &stubCarts{},
		products: &stubProducts{},
		webhook:  &stubWebhook{},
	}
	router, err := buildRouter(logging.Discard(), nil, Deps{
		Checkout:      td.checkout,
		Orders:        td.orders,
		Carts:         td.carts,
		Products:      td.products,
		StripeWebhook: td.webhook,
		Auth:          AuthConfig{Secret: testSecret, Issuer: "storefront-test"},
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router, td
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	return tokenWithSecret(t, sub, role, testSecret)
}

func tokenWithSecret(t *testing.T, sub, role, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "storefront-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func do(router http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
