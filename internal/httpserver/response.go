package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

const (
	msgInternal = "Internal server error"
	msgGateway  = "Payment provider is unavailable, please try again"
)

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// writeError maps domain errors to status codes. Only validation, auth and
// not-found messages reach the client verbatim.
func writeError(c *gin.Context, fallback *slog.Logger, err error) {
	log := logging.From(c, fallback)
	ctx := c.Request.Context()

	var (
		verr *domain.ValidationError
		aerr *domain.AuthError
		nerr *domain.NotFoundError
		gerr *domain.GatewayError
	)
	switch {
	case errors.As(err, &verr):
		abortJSON(c, http.StatusBadRequest, verr.Message)
	case errors.As(err, &aerr):
		abortJSON(c, http.StatusUnauthorized, aerr.Message)
	case errors.As(err, &nerr):
		abortJSON(c, http.StatusNotFound, nerr.Message)
	case errors.Is(err, domain.ErrRequestInFlight):
		abortJSON(c, http.StatusConflict, "A request with this idempotency key is already in progress")
	case errors.As(err, &gerr):
		log.ErrorContext(ctx, "payment gateway error",
			slog.String("provider", string(gerr.Provider)),
			slog.String("op", gerr.Op),
			slog.String("error", gerr.Err.Error()),
		)
		abortJSON(c, http.StatusBadGateway, msgGateway)
	default:
		log.ErrorContext(ctx, "request failed", slog.String("error", err.Error()))
		abortJSON(c, http.StatusInternalServerError, msgInternal)
	}
}
