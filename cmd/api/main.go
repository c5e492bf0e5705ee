package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/event"
	"storefront/internal/httpclient"
	"storefront/internal/httpserver"
	"storefront/internal/idempotency"
	"storefront/internal/logging"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	addressrepo "storefront/internal/repository/address"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	"storefront/internal/service/ledger"
	productsvc "storefront/internal/service/product"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.New("api", cfg.LogLevel, cfg.LogFile)

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	addressRepo := addressrepo.NewPostgres(dbpool, logger)

	gateways, err := buildGateways(cfg, logger)
	if err != nil {
		return err
	}

	orders := ledger.New(orderRepo, cartRepo, logger)
	publisher := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, logger)
	defer publisher.Close()

	deps := checkoutsvc.Deps{
		Pricer:          pricing.New(productRepo),
		Ledger:          orders,
		Addresses:       addressRepo,
		Gateways:        gateways,
		Events:          publisher,
		Currency:        cfg.Currency,
		ProviderTimeout: cfg.ProviderTimeout,
		Logger:          logger,
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		deps.Idempotency = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, idempotency keys are ignored")
	}

	httpDeps := httpserver.Deps{
		Checkout:    checkoutsvc.New(deps),
		Orders:      orders,
		Carts:       cartsvc.New(cartRepo, productRepo),
		Products:    productsvc.New(productRepo),
		Auth:        httpserver.AuthConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.Stripe.WebhookSecret != "" {
		httpDeps.StripeWebhook = payment.NewStripeWebhook(cfg.Stripe.WebhookSecret)
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpDeps)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func buildGateways(cfg config.Config, logger *slog.Logger) (*payment.Registry, error) {
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.ProviderTimeout

	gws := []payment.Gateway{
		payment.COD{},
		payment.NewEsewa(payment.EsewaConfig{
			MerchantCode: cfg.Esewa.MerchantCode,
			SecretKey:    cfg.Esewa.SecretKey,
			BaseURL:      cfg.BaseURL,
			FormURL:      cfg.Esewa.FormURL,
			VerifyURL:    cfg.Esewa.VerifyURL,
			Production:   cfg.IsProduction(),
			Timeout:      cfg.ProviderTimeout,
		}, httpclient.New("esewa", clientCfg, logger), logger),
	}

	if cfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, stripe checkouts will fail")
	}
	gws = append(gws, payment.NewStripe(payment.StripeConfig{
		APIKey:   cfg.Stripe.SecretKey,
		Currency: cfg.Currency,
		BaseURL:  cfg.BaseURL,
	}, logger))
	return payment.NewRegistry(gws...)
}
