package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/services"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"go.uber.org/zap"
)

type OrderHandler struct {
	logger  *zap.Logger
	service services.OrderService
}

func NewOrderHandler(logger *zap.Logger, svc services.OrderService) *OrderHandler {
	return &OrderHandler{logger: logger, service: svc}
}

// RegisterRoutes registers order routes on the provided Gin group.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders/by-ref/:txRef", h.GetOrderByTxRef)
}

// CreateOrder godoc
// @Summary      Create an order awaiting payment
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order  body      views.CreateOrderRequest  true  "Order"
// @Success      201    {object}  pkg.APIResponse
// @Failure      400    {object}  pkg.ErrorResponse
// @Failure      409    {object}  pkg.ErrorResponse
// @Router       /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)

	var req views.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid request body", err))
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), traceID, req)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusCreated, pkg.APIResponse{TraceID: traceID, Data: views.ToOrderResponse(order)})
}

// GetOrder godoc
// @Summary      Get an order by id
// @Tags         orders
// @Produce      json
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  pkg.APIResponse
// @Failure      404  {object}  pkg.ErrorResponse
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)
	order, err := h.service.GetOrder(c.Request.Context(), traceID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: views.ToOrderResponse(order)})
}

// GetOrderByTxRef godoc
// @Summary      Get an order by its payment reference
// @Tags         orders
// @Produce      json
// @Param        txRef  path      string  true  "Transaction reference"
// @Success      200    {object}  pkg.APIResponse
// @Failure      404    {object}  pkg.ErrorResponse
// @Router       /orders/by-ref/{txRef} [get]
func (h *OrderHandler) GetOrderByTxRef(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)
	order, err := h.service.GetOrderByTxRef(c.Request.Context(), traceID, c.Param("txRef"))
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: views.ToOrderResponse(order)})
}
