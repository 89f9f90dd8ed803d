package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	middleware "github.com/nimeshabuddhika/book-order-payments/pkg/middlewares"
	"github.com/nimeshabuddhika/book-order-payments/pkg/repositories"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/services"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// AdminHandler serves the back-office views. Every route sits behind the auth middleware passed in.
type AdminHandler struct {
	logger     *zap.Logger
	orders     services.OrderService
	reconciler services.ReconcileService
	auth       gin.HandlerFunc
	validate   *validator.Validate
}

func NewAdminHandler(logger *zap.Logger, orders services.OrderService, reconciler services.ReconcileService, auth gin.HandlerFunc) *AdminHandler {
	return &AdminHandler{
		logger:     logger,
		orders:     orders,
		reconciler: reconciler,
		auth:       auth,
		validate:   validator.New(),
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin", h.auth)
	admin.GET("/orders", h.ListOrders)
	admin.GET("/orders/:id", h.GetOrder)
	admin.POST("/orders/:id/reverify", h.ReverifyOrder)
}

// ListOrders godoc
// @Summary      List orders
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status     query     string  false  "PENDING_PAYMENT or PAID"
// @Param        search     query     string  false  "Matches reference, parent name or email"
// @Param        dateFrom   query     string  false  "YYYY-MM-DD, inclusive"
// @Param        dateTo     query     string  false  "YYYY-MM-DD, inclusive"
// @Param        sortBy     query     string  false  "amount or createdAt"
// @Param        sortOrder  query     string  false  "asc or desc"
// @Param        page       query     int     false  "Page, from 1"
// @Param        pageSize   query     int     false  "Page size, max 100"
// @Success      200        {object}  pkg.APIResponse
// @Failure      400        {object}  pkg.ErrorResponse
// @Failure      401        {object}  pkg.ErrorResponse
// @Router       /admin/orders [get]
func (h *AdminHandler) ListOrders(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)

	var q views.OrderListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid query", err))
		return
	}
	filter, err := h.toFilter(q)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}

	orders, total, err := h.orders.ListOrders(c.Request.Context(), traceID, filter)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}

	resp := views.OrderListResponse{
		Orders:   make([]views.OrderResponse, 0, len(orders)),
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Total:    total,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, views.ToOrderResponse(o))
	}
	resp.TotalPages = (total + filter.PageSize - 1) / filter.PageSize
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: resp})
}

// GetOrder godoc
// @Summary      Order detail with its verification history
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  pkg.APIResponse
// @Failure      404  {object}  pkg.ErrorResponse
// @Router       /admin/orders/{id} [get]
func (h *AdminHandler) GetOrder(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)
	order, log, err := h.orders.GetOrderDetail(c.Request.Context(), traceID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: views.OrderDetailResponse{
		OrderResponse: views.ToOrderResponse(order),
		Verifications: views.ToVerificationResponses(log),
	}})
}

// ReverifyOrder godoc
// @Summary      Ask the provider again about an order's payment
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order id"
// @Success      200  {object}  views.ReconcileResponse
// @Failure      404  {object}  pkg.ErrorResponse
// @Failure      502  {object}  views.ReconcileResponse
// @Router       /admin/orders/{id}/reverify [post]
func (h *AdminHandler) ReverifyOrder(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)
	h.logger.Info("manual reverification requested",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.OrderId, c.Param("id")),
		zap.String("admin", c.GetString(middleware.AdminSubject)))

	result, err := h.reconciler.ReverifyOrder(c.Request.Context(), traceID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(resultStatus(result), toReconcileResponse(traceID, result))
}

func (h *AdminHandler) toFilter(q views.OrderListQuery) (repositories.OrderFilter, error) {
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	q.Search = strings.TrimSpace(q.Search)
	if err := h.validate.Struct(q); err != nil {
		return repositories.OrderFilter{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid query", err)
	}

	filter := repositories.OrderFilter{
		Page:      max(q.Page, 1),
		PageSize:  q.PageSize,
		Status:    pkg.OrderStatus(q.Status),
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	switch {
	case filter.PageSize <= 0:
		filter.PageSize = 20
	case filter.PageSize > 100:
		filter.PageSize = 100
	}
	if q.DateFrom != "" {
		from, _ := time.Parse(dateLayout, q.DateFrom)
		filter.DateFrom = &from
	}
	if q.DateTo != "" {
		// dateTo is inclusive for callers; the repository bound is exclusive.
		to, _ := time.Parse(dateLayout, q.DateTo)
		to = to.AddDate(0, 0, 1)
		filter.DateTo = &to
	}
	if filter.DateFrom != nil && filter.DateTo != nil && !filter.DateFrom.Before(*filter.DateTo) {
		return repositories.OrderFilter{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "dateFrom must not be after dateTo", nil)
	}
	return filter, nil
}
