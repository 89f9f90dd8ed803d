package views

import (
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
)

type CreateOrderRequest struct {
	ParentID      *string            `json:"parentId" validate:"omitempty,max=64"`
	ParentName    string             `json:"parentName" validate:"required,max=255"`
	ParentEmail   string             `json:"parentEmail" validate:"required,email,max=255"`
	TotalAmount   int64              `json:"totalAmount" validate:"gt=0"`
	PaymentMethod string             `json:"paymentMethod" validate:"omitempty,max=32"`
	TxRef         string             `json:"txRef" validate:"omitempty,max=64,printascii"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderItemRequest struct {
	ISBN      string  `json:"isbn" validate:"required,max=32"`
	Title     string  `json:"title" validate:"max=512"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	UnitPrice int64   `json:"unitPrice" validate:"gte=0"`
	StudentID *string `json:"studentId" validate:"omitempty,max=64"`
}

type OrderItemResponse struct {
	ISBN      string  `json:"isbn"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unitPrice"`
	StudentID *string `json:"studentId,omitempty"`
}

type OrderResponse struct {
	ID                    string              `json:"id"`
	TxRef                 string              `json:"txRef"`
	Status                pkg.OrderStatus     `json:"status"`
	ParentID              *string             `json:"parentId,omitempty"`
	ParentName            string              `json:"parentName"`
	ParentEmail           string              `json:"parentEmail"`
	TotalAmount           int64               `json:"totalAmount"`
	Currency              string              `json:"currency"`
	PaymentMethod         string              `json:"paymentMethod"`
	MarkupAmount          int64               `json:"markupAmount"`
	SupplierShare         int64               `json:"supplierShare"`
	Items                 []OrderItemResponse `json:"items,omitempty"`
	ProviderTransactionID *string             `json:"providerTransactionId,omitempty"`
	VerificationAttempts  int                 `json:"verificationAttempts"`
	LastVerificationError *string             `json:"lastVerificationError,omitempty"`
	NeedsReview           bool                `json:"needsReview"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
	PaymentVerifiedAt     *time.Time          `json:"paymentVerifiedAt,omitempty"`
}

type VerificationResponse struct {
	TransactionID  string                  `json:"transactionId"`
	Outcome        pkg.VerificationOutcome `json:"outcome"`
	Reason         string                  `json:"reason,omitempty"`
	ProviderStatus string                  `json:"providerStatus,omitempty"`
	Amount         *string                 `json:"amount,omitempty"`
	Currency       string                  `json:"currency,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
}

type OrderDetailResponse struct {
	OrderResponse
	Verifications []VerificationResponse `json:"verifications"`
}

type OrderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
}

// OrderListQuery binds the admin listing query string.
type OrderListQuery struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	Status    string `form:"status" validate:"omitempty,oneof=PENDING_PAYMENT PAID"`
	Search    string `form:"search" validate:"max=255"`
	DateFrom  string `form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=amount createdAt"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

func ToOrderResponse(o models.Order) OrderResponse {
	resp := OrderResponse{
		ID:                    o.ID.String(),
		TxRef:                 o.TxRef,
		Status:                o.Status,
		ParentID:              o.ParentID,
		ParentName:            o.ParentName,
		ParentEmail:           o.ParentEmail,
		TotalAmount:           o.TotalAmount,
		Currency:              o.Currency,
		PaymentMethod:         o.PaymentMethod,
		MarkupAmount:          o.MarkupAmount,
		SupplierShare:         o.SupplierShare,
		ProviderTransactionID: o.ProviderTransactionID,
		VerificationAttempts:  o.VerificationAttempts,
		LastVerificationError: o.LastVerificationError,
		NeedsReview:           o.NeedsReview,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		PaymentVerifiedAt:     o.PaymentVerifiedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ISBN:      it.ISBN,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			StudentID: it.StudentID,
		})
	}
	return resp
}

func ToVerificationResponses(log []models.PaymentVerification) []VerificationResponse {
	out := make([]VerificationResponse, 0, len(log))
	for _, v := range log {
		var amount *string
		if v.Amount.Valid {
			s := v.Amount.Decimal.String()
			amount = &s
		}
		out = append(out, VerificationResponse{
			TransactionID:  v.TransactionID,
			Outcome:        v.Outcome,
			Reason:         v.Reason,
			ProviderStatus: v.ProviderStatus,
			Amount:         amount,
			Currency:       v.Currency,
			CreatedAt:      v.CreatedAt,
		})
	}
	return out
}
