package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	integrationapp "github.com/pos/backend/internal/application/integration"
)

// OrderHandler serves accept/reject decisions and status changes of delivery orders
type OrderHandler struct {
	service OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(service OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// StatusRequest is the body of POST /orders/:id/status
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RegisterRoutes mounts the handler under /orders
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/orders/:id")
	g.POST("/accept", h.Accept)
	g.POST("/reject", h.Reject)
	g.POST("/status", h.UpdateStatus)
	g.GET("/deadline", h.Deadline)
}

// Accept confirms a pending delivery order with its provider. The body is optional.
func (h *OrderHandler) Accept(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in integrationapp.AcceptOrderInput
	if c.Request.ContentLength > 0 && !bindJSON(c, &in) {
		return
	}
	respond(c, http.StatusOK, h.service.AcceptOrder(c.Request.Context(), id, in))
}

// Reject declines a pending delivery order with a reason
func (h *OrderHandler) Reject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in integrationapp.RejectOrderInput
	if !bindJSON(c, &in) {
		return
	}
	respond(c, http.StatusOK, h.service.RejectOrder(c.Request.Context(), id, in))
}

// UpdateStatus moves the internal order forward and notifies the provider
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.service.UpdateOrderStatus(c.Request.Context(), id, req.Status))
}

// Deadline returns the acceptance window of the order
func (h *OrderHandler) Deadline(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.service.OrderDeadline(c.Request.Context(), id))
}
