package pkg

const (
	HeaderTraceId   string = "X-Trace-Id"
	HeaderRequestId string = "X-Request-Id"
	// HeaderWebhookHash carries the shared secret Flutterwave attaches to webhook deliveries.
	HeaderWebhookHash string = "verif-hash"
)

const (
	TraceId       string = "trace_id"
	RequestId     string = "request_id"
	OrderId       string = "order_id"
	TxRef         string = "tx_ref"
	TransactionId string = "transaction_id"
	EventType     string = "event_type"
	EventId       string = "event_id"
	Service       string = "service"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
)

// IsTerminal reports whether no further transition is allowed from the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid
}

type VerificationOutcome string

const (
	VerificationOutcomeSuccess  VerificationOutcome = "SUCCESS"
	VerificationOutcomeRejected VerificationOutcome = "REJECTED"
)

const (
	DefaultCurrency      = "UGX"
	DefaultPaymentMethod = "flutterwave"
	TxRefPrefix          = "BBA-"
)
