package handlers

import (
	"context"
	"net/http"

	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/status"
	"github.com/gin-gonic/gin"
)

type OrderItemLister interface {
	ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

type OrdersHandler struct {
	items OrderItemLister
}

func NewOrdersHandler(items OrderItemLister) *OrdersHandler {
	return &OrdersHandler{items: items}
}

// Status godoc
// @Summary     Derived order status
// @Description Aggregates the statuses of an order's items and their latest jobs.
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       order_id path string true "Order ID"
// @Success     200 {object} models.OrderStatusResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders/{order_id}/status [get]
func (h *OrdersHandler) Status(c *gin.Context) {
	orderID := c.Param("order_id")
	items, err := h.items.ListOrderItems(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, "failed to load order items", err)
		return
	}

	c.JSON(http.StatusOK, models.OrderStatusResponse{
		OrderID: orderID,
		Status:  string(status.CalculateOrderStatus(status.FromOrderItems(items))),
		Items:   len(items),
	})
}
