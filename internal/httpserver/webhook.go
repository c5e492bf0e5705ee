package httpserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/payment"
)

const maxWebhookBody = 64 << 10

func (h *handlers) stripeWebhook(c *gin.Context) {
	log := logging.From(c, h.logger)
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		abortJSON(c, http.StatusBadRequest, "Invalid payload")
		return
	}

	conf, handled, err := h.deps.StripeWebhook.Parse(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payment.ErrInvalidSignature) {
		log.WarnContext(c.Request.Context(), "stripe webhook rejected", slog.String("error", err.Error()))
		abortJSON(c, http.StatusBadRequest, "Invalid signature")
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !handled {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	res, err := h.deps.Checkout.OnProviderConfirmed(c.Request.Context(), domain.PaymentStripe, conf.OrderID, conf.ProviderReference)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "alreadyProcessed": res.AlreadyProcessed})
}
