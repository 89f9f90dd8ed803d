package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
)

// Order maps to table `orders`
type Order struct {
	ID                    uuid.UUID
	TxRef                 string
	ParentID              *string
	ParentName            string
	ParentEmail           string
	TotalAmount           int64
	Currency              string
	PaymentMethod         string
	MarkupAmount          int64
	SupplierShare         int64
	ItemsJSON             []byte
	Status                pkg.OrderStatus
	ProviderTransactionID *string
	VerificationAttempts  int
	LastVerificationError *string
	NeedsReview           bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
	PaymentVerifiedAt     *time.Time

	// Items is populated only when loaded explicitly.
	Items []OrderItem
}

// OrderItem maps to table `order_items`
type OrderItem struct {
	ID        int64
	OrderID   uuid.UUID
	LineNo    int
	ISBN      string
	Title     string
	Quantity  int
	UnitPrice int64
	StudentID *string
}

// ToEvent snapshots the order into a notification payload.
func (o Order) ToEvent(eventType views.EventType, occurredAt time.Time) views.OrderEvent {
	items := make([]views.OrderEventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, views.OrderEventItem{
			ISBN:      it.ISBN,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			StudentID: deref(it.StudentID),
		})
	}
	return views.OrderEvent{
		EventID:               uuid.NewString(),
		EventType:             eventType,
		OrderID:               o.ID.String(),
		TxRef:                 o.TxRef,
		ParentID:              deref(o.ParentID),
		ParentName:            o.ParentName,
		ParentEmail:           o.ParentEmail,
		TotalAmount:           o.TotalAmount,
		Currency:              o.Currency,
		MarkupAmount:          o.MarkupAmount,
		SupplierShare:         o.SupplierShare,
		Status:                o.Status,
		ProviderTransactionID: deref(o.ProviderTransactionID),
		Items:                 items,
		CreatedAt:             o.CreatedAt,
		PaymentVerifiedAt:     o.PaymentVerifiedAt,
		OccurredAt:            occurredAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
