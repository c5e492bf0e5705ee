package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type cartRequest struct {
	Items []itemRequest `json:"items"`
}

func (h *handlers) getCart(c *gin.Context) {
	id, _ := callerOf(c)
	cart, err := h.deps.Carts.Get(c.Request.Context(), id.BuyerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

func (h *handlers) replaceCart(c *gin.Context) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	lines, err := toCartLines(req.Items)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	id, _ := callerOf(c)
	cart, err := h.deps.Carts.Replace(c.Request.Context(), id.BuyerID, lines)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart Updated", "cart": cart})
}
