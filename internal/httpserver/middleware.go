package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storefront/internal/logging"
)

const (
	identityKey     = "identity"
	requestIDHeader = "X-Request-ID"
	sellerRole      = "seller"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// AuthConfig validates bearer tokens issued by the identity provider.
type AuthConfig struct {
	Secret string
	Issuer string
}

// identity is the caller resolved from a bearer token.
type identity struct {
	BuyerID string
	Role    string
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func requestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		logging.With(c, base.With(slog.String("request_id", reqID)))

		c.Next()

		l := logging.From(c, base)
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			l.ErrorContext(c.Request.Context(), "http request", attrs...)
		case status >= 400:
			l.WarnContext(c.Request.Context(), "http request", attrs...)
		default:
			l.InfoContext(c.Request.Context(), "http request", attrs...)
		}
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// authenticate resolves the caller from an optional bearer token. A present
// but invalid token is rejected outright.
func authenticate(cfg AuthConfig) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			abortJSON(c, http.StatusUnauthorized, "Not authorized")
			return
		}
		var cl claims
		_, err := parser.ParseWithClaims(strings.TrimSpace(raw), &cl, func(*jwt.Token) (any, error) {
			return []byte(cfg.Secret), nil
		})
		if err != nil || cl.Subject == "" {
			logging.From(c, nil).WarnContext(c.Request.Context(), "rejected bearer token", slog.Any("error", err))
			abortJSON(c, http.StatusUnauthorized, "Not authorized")
			return
		}

		id := identity{BuyerID: cl.Subject, Role: cl.Role}
		c.Set(identityKey, id)
		logging.With(c, logging.From(c, nil).With(slog.String("buyer_id", id.BuyerID)))
		c.Next()
	}
}

func requireBuyer(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := callerOf(c); !ok {
			abortJSON(c, http.StatusUnauthorized, message)
			return
		}
		c.Next()
	}
}

func requireSeller() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := callerOf(c)
		if !ok || id.Role != sellerRole {
			abortJSON(c, http.StatusUnauthorized, "Not authorized")
			return
		}
		c.Next()
	}
}

func callerOf(c *gin.Context) (identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return identity{}, false
	}
	id, ok := v.(identity)
	return id, ok && id.BuyerID != ""
}
