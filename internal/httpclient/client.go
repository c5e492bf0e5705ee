// Package httpclient is the outbound HTTP client for payment providers:
// bounded timeouts, retry on transient failures and a circuit breaker per
// provider.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"storefront/internal/logging"
)

type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
	}
}

// Client wraps http.Client with retry and breaker protection.
type Client struct {
	httpClient *http.Client
	config     Config
	breaker    *breaker
	logger     *slog.Logger
}

func New(name string, cfg Config, logger *slog.Logger) *Client {
	logger = logging.OrDiscard(logger)
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config:     cfg,
		breaker:    newBreaker(DefaultBreakerConfig(name), logger),
		logger:     logger,
	}
}

// PostForm POSTs an urlencoded body and returns the response body. Non-2xx
// responses are returned as errors.
func (c *Client) PostForm(ctx context.Context, url, body string) ([]byte, error) {
	return c.breaker.execute(func() ([]byte, error) {
		return c.do(ctx, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req, nil
		})
	})
}

// do issues the request built by newReq, rebuilding it for every attempt so
// the body is replayed.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.config.RetryWaitMin * time.Duration(1<<uint(attempt-1))
			if wait > c.config.RetryWaitMax {
				wait = c.config.RetryWaitMax
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if isRetryable(err) {
				c.logger.WarnContext(ctx, "provider request failed, retrying", slog.Int("attempt", attempt+1), slog.Any("error", err))
				continue
			}
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read response: %w", readErr)
		}
		switch {
		case resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented:
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
			continue
		case resp.StatusCode >= 300:
			return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
		}
		return body, nil
	}
	return nil, fmt.Errorf("http request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
