package views

import (
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/flutterwave"
)

type VerifyPaymentRequest struct {
	TransactionID  string `json:"transactionId" binding:"required"`
	OrderReference string `json:"orderReference" binding:"required"`
}

// WebhookPayload is the subset of a Flutterwave webhook delivery we read.
// Its status fields are never trusted; the transaction is re-verified through the API.
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID     flutterwave.TransactionID `json:"id"`
		TxRef  string                    `json:"tx_ref"`
		Status string                    `json:"status"`
	} `json:"data"`
}

// ReconcileResponse always carries the tri-state outcome so callers know whether to retry.
type ReconcileResponse struct {
	Success     bool            `json:"success"`
	Retryable   bool            `json:"retryable"`
	AlreadyPaid bool            `json:"alreadyPaid,omitempty"`
	NeedsReview bool            `json:"needsReview,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Code        string          `json:"code,omitempty"`
	OrderID     string          `json:"orderId,omitempty"`
	Status      pkg.OrderStatus `json:"status,omitempty"`
	TraceID     string          `json:"traceId"`
}
