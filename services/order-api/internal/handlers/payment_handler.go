package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/services"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"go.uber.org/zap"
)

const (
	chargeCompletedEvent = "charge.completed"
	maxWebhookBody       = 1 << 20
)

type PaymentHandler struct {
	logger      *zap.Logger
	service     services.ReconcileService
	webhookHash []byte
}

func NewPaymentHandler(logger *zap.Logger, svc services.ReconcileService, webhookHash string) *PaymentHandler {
	return &PaymentHandler{logger: logger, service: svc, webhookHash: []byte(webhookHash)}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments/verify", h.VerifyPayment)
	r.POST("/payments/webhook", h.Webhook)
}

// VerifyPayment godoc
// @Summary      Verify a payment and settle its order
// @Description  Always answers with success and retryable so the caller knows whether to try again.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        payment  body      views.VerifyPaymentRequest  true  "Payment"
// @Success      200      {object}  views.ReconcileResponse
// @Failure      400      {object}  views.ReconcileResponse
// @Failure      404      {object}  pkg.ErrorResponse
// @Failure      502      {object}  views.ReconcileResponse
// @Router       /payments/verify [post]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)

	var req views.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, traceID, pkg.NewValidationError("transactionId and orderReference are required", err))
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), traceID, req.TransactionID, req.OrderReference)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(resultStatus(result), toReconcileResponse(traceID, result))
}

// Webhook godoc
// @Summary      Flutterwave webhook receiver
// @Description  The payload is only a hint; the transaction is always re-verified with the provider.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        verif-hash  header    string  true  "Shared webhook secret"
// @Success      200         {object}  views.ReconcileResponse
// @Failure      401         {object}  pkg.ErrorResponse
// @Failure      502         {object}  views.ReconcileResponse
// @Router       /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	traceID := c.GetString(pkg.TraceId)

	if !h.authentic(c.GetHeader(pkg.HeaderWebhookHash)) {
		respondError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrUnauthorizedCode, "invalid webhook signature", nil))
		return
	}

	var payload views.WebhookPayload
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
		respondError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid webhook body", err))
		return
	}

	if payload.Event != chargeCompletedEvent {
		h.logger.Info("webhook event ignored", zap.String(pkg.TraceId, traceID), zap.String(pkg.EventType, payload.Event))
		c.JSON(http.StatusOK, views.ReconcileResponse{Reason: "event ignored", TraceID: traceID})
		return
	}

	txID := strings.TrimSpace(payload.Data.ID.String())
	result, err := h.service.Reconcile(c.Request.Context(), traceID, txID, payload.Data.TxRef)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}

	// Final refusals are acknowledged so the provider stops redelivering; only retryable outcomes ask for another delivery.
	status := http.StatusOK
	if result.Retryable {
		status = resultStatus(result)
	}
	c.JSON(status, toReconcileResponse(traceID, result))
}

// authentic compares the delivered hash in constant time. An unconfigured secret rejects every delivery.
func (h *PaymentHandler) authentic(got string) bool {
	if len(h.webhookHash) == 0 || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), h.webhookHash) == 1
}

func resultStatus(r services.ReconcileResult) int {
	if r.Success {
		return http.StatusOK
	}
	if r.Failure.Status != 0 {
		return r.Failure.Status
	}
	return http.StatusInternalServerError
}

func toReconcileResponse(traceID string, r services.ReconcileResult) views.ReconcileResponse {
	return views.ReconcileResponse{
		Success:     r.Success,
		Retryable:   r.Retryable,
		AlreadyPaid: r.AlreadyPaid,
		NeedsReview: r.NeedsReview,
		Reason:      r.Reason,
		Code:        r.Failure.Code,
		OrderID:     r.OrderID,
		Status:      r.Status,
		TraceID:     traceID,
	}
}
