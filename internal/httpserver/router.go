package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/service/checkout"
)

type checkoutService interface {
	Checkout(ctx context.Context, in checkout.Input) (*checkout.Result, error)
	HandleCallback(ctx context.Context, method domain.PaymentMethod, params payment.CallbackParams) (*checkout.CallbackResult, error)
	OnProviderConfirmed(ctx context.Context, method domain.PaymentMethod, orderID, reference string) (*checkout.CallbackResult, error)
}

type orderService interface {
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
}

type cartService interface {
	Get(ctx context.Context, buyerID string) (domain.Cart, error)
	Replace(ctx context.Context, buyerID string, lines []domain.CartLine) (domain.Cart, error)
}

type productService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type webhookParser interface {
	Parse(payload []byte, signature string) (payment.Confirmation, bool, error)
}

// Deps holds the services the handlers call. StripeWebhook may be nil, in
// which case the webhook route is not mounted.
type Deps struct {
	Checkout      checkoutService
	Orders        orderService
	Carts         cartService
	Products      productService
	StripeWebhook webhookParser
	Auth          AuthConfig
	CORSOrigins   []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *slog.Logger, db pinger, deps Deps) (*gin.Engine, error) {
	if deps.Checkout == nil || deps.Orders == nil || deps.Carts == nil || deps.Products == nil {
		return nil, errors.New("httpserver: missing service dependency")
	}
	if deps.Auth.Secret == "" {
		return nil, errors.New("httpserver: jwt secret required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), metricsMiddleware(), corsMiddleware(deps.CORSOrigins))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{deps: deps, logger: logger}
	identify := authenticate(deps.Auth)

	api := router.Group("/api")
	api.GET("/product/list", h.listProducts)

	ordering := api.Group("", identify, requireBuyer("You must be logged in to place an order"))
	ordering.POST("/order/create", h.createCODOrder)
	ordering.POST("/esewa-order", h.createEsewaOrder)
	ordering.POST("/order/stripe", h.createStripeOrder)

	buyer := api.Group("", identify, requireBuyer("Not authorized"))
	buyer.POST("/verify-esewa-payment", h.verifyEsewaPayment)
	buyer.GET("/order/list", h.listBuyerOrders)
	buyer.GET("/cart", h.getCart)
	buyer.PUT("/cart", h.replaceCart)

	seller := api.Group("", identify, requireSeller())
	seller.GET("/order/seller-orders", h.listSellerOrders)
	seller.DELETE("/product/delete", h.deleteProduct)

	if deps.StripeWebhook != nil {
		api.POST("/stripe/webhook", h.stripeWebhook)
	}

	return router, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}
