package views

import (
	"errors"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
)

type EventType string

const (
	EventOrderCreated EventType = "order.created"
	EventOrderPaid    EventType = "order.paid"
)

// OrderEvent is the payload published for every order notification.
type OrderEvent struct {
	EventID               string           `json:"eventId"`
	EventType             EventType        `json:"eventType"`
	OrderID               string           `json:"orderId"`
	TxRef                 string           `json:"txRef"`
	ParentID              string           `json:"parentId,omitempty"`
	ParentName            string           `json:"parentName"`
	ParentEmail           string           `json:"parentEmail"`
	TotalAmount           int64            `json:"totalAmount"`
	Currency              string           `json:"currency"`
	MarkupAmount          int64            `json:"markupAmount"`
	SupplierShare         int64            `json:"supplierShare"`
	Status                pkg.OrderStatus  `json:"status"`
	ProviderTransactionID string           `json:"providerTransactionId,omitempty"`
	Items                 []OrderEventItem `json:"items"`
	CreatedAt             time.Time        `json:"createdAt"`
	PaymentVerifiedAt     *time.Time       `json:"paymentVerifiedAt,omitempty"`
	OccurredAt            time.Time        `json:"occurredAt"`
}

type OrderEventItem struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	StudentID string `json:"studentId,omitempty"`
}

// Validate rejects events a consumer cannot act on.
func (e OrderEvent) Validate() error {
	switch e.EventType {
	case EventOrderCreated, EventOrderPaid:
	default:
		return errors.New("unknown event type: " + string(e.EventType))
	}
	if e.OrderID == "" || e.TxRef == "" {
		return errors.New("order id and tx ref are required")
	}
	return nil
}
