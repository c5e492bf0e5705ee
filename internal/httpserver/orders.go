package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/service/checkout"
)

const idempotencyHeader = "Idempotency-Key"

type orderRequest struct {
	Address string        `json:"address"`
	Items   []itemRequest `json:"items"`
}

type itemRequest struct {
	Product  string      `json:"product"`
	Quantity rawQuantity `json:"quantity"`
}

// rawQuantity holds the quantity token only when it is a bare JSON number.
// Strings such as "2", booleans and null are left empty and fail validation.
type rawQuantity json.Number

func (q *rawQuantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || (b[0] != '-' && (b[0] < '0' || b[0] > '9')) {
		*q = ""
		return nil
	}
	*q = rawQuantity(b)
	return nil
}

// verifyRequest carries the values eSewa appends to the success URL.
// amt may arrive as a JSON number or string.
type verifyRequest struct {
	OID     looseString `json:"oid" binding:"required"`
	Amt     looseString `json:"amt" binding:"required"`
	RefID   looseString `json:"refId" binding:"required"`
	PID     looseString `json:"pid" binding:"required"`
	OrderID looseString `json:"orderId" binding:"required"`
}

type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(b)
	return nil
}

func toCartLines(items []itemRequest) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		q, err := pricing.Quantity(it.Product, json.Number(it.Quantity))
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.CartLine{ProductID: strings.TrimSpace(it.Product), Quantity: q})
	}
	return lines, nil
}

func (h *handlers) checkout(c *gin.Context, method domain.PaymentMethod) (*checkout.Result, bool) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	lines, err := toCartLines(req.Items)
	if err != nil {
		writeError(c, h.logger, err)
		return nil, false
	}
	id, _ := callerOf(c)

	res, err := h.deps.Checkout.Checkout(c.Request.Context(), checkout.Input{
		BuyerID:        id.BuyerID,
		AddressID:      strings.TrimSpace(req.Address),
		Lines:          lines,
		Method:         method,
		Origin:         c.GetHeader("Origin"),
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return nil, false
	}
	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	return res, true
}

func (h *handlers) createCODOrder(c *gin.Context) {
	res, ok := h.checkout(c, domain.PaymentCOD)
	if !ok {
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success": true,
		"message": "Order placed successfully",
		"orderId": res.Order.ID,
		"amount":  res.Order.Amount,
	})
}

func (h *handlers) createEsewaOrder(c *gin.Context) {
	res, ok := h.checkout(c, domain.PaymentEsewa)
	if !ok {
		return
	}
	body := gin.H{
		"success":     true,
		"orderId":     res.Order.ID,
		"amount":      res.Order.Subtotal,
		"taxAmount":   res.Order.TaxAmount,
		"totalAmount": res.Order.Amount,
	}
	if res.Initiation != nil && res.Initiation.Esewa != nil {
		body["esewaConfig"] = res.Initiation.Esewa
		body["paymentUrl"] = res.Initiation.RedirectURL
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) createStripeOrder(c *gin.Context) {
	res, ok := h.checkout(c, domain.PaymentStripe)
	if !ok {
		return
	}
	body := gin.H{"success": true, "orderId": res.Order.ID}
	if res.Initiation != nil {
		body["url"] = res.Initiation.RedirectURL
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) verifyEsewaPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "Missing required payment parameters")
		return
	}
	res, err := h.deps.Checkout.HandleCallback(c.Request.Context(), domain.PaymentEsewa, payment.CallbackParams{
		OrderID:       strings.TrimSpace(string(req.OrderID)),
		TransactionID: strings.TrimSpace(string(req.OID)),
		Amount:        strings.TrimSpace(string(req.Amt)),
		Reference:     strings.TrimSpace(string(req.RefID)),
		ProductCode:   strings.TrimSpace(string(req.PID)),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !res.Verified {
		abortJSON(c, http.StatusBadRequest, "Payment verification failed with eSewa")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Payment verified successfully",
		"orderId":   res.Order.ID,
		"paymentId": res.Order.PaymentReference,
	})
}

func (h *handlers) listBuyerOrders(c *gin.Context) {
	id, _ := callerOf(c)
	orders, err := h.deps.Orders.ListByBuyer(c.Request.Context(), id.BuyerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": nonNil(orders)})
}

func (h *handlers) listSellerOrders(c *gin.Context) {
	orders, err := h.deps.Orders.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": nonNil(orders)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
