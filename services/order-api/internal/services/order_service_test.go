package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/pricing"
	events "github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderFixture struct {
	orders     *memOrderRepo
	db         *fakeDB
	dispatcher *recordingDispatcher
	service    OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{orders: newMemOrderRepo(), db: &fakeDB{}, dispatcher: &recordingDispatcher{}}
	f.service = NewOrderService(OrderServiceConfig{
		Logger:           zap.NewNop(),
		DB:               f.db,
		OrderRepo:        f.orders,
		VerificationRepo: &memVerificationRepo{},
		Dispatcher:       f.dispatcher,
		Currency:         "ugx",
		MarkupRate:       pricing.DefaultMarkupRate,
	})
	return f
}

func validRequest() views.CreateOrderRequest {
	return views.CreateOrderRequest{
		ParentName:  "Jane Parent",
		ParentEmail: "jane@example.com",
		TotalAmount: 30000,
		Items: []views.OrderItemRequest{
			{ISBN: "123", Title: "Math 3", Quantity: 1, UnitPrice: 30000},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	f := newOrderFixture()

	order, err := f.service.CreateOrder(context.Background(), "trace", validRequest())
	require.NoError(t, err)

	assert.Equal(t, pkg.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, int64(30000), order.TotalAmount)
	assert.Equal(t, int64(4500), order.MarkupAmount)
	assert.Equal(t, int64(25500), order.SupplierShare)
	assert.Equal(t, "UGX", order.Currency)
	assert.Equal(t, pkg.DefaultPaymentMethod, order.PaymentMethod)
	assert.True(t, strings.HasPrefix(order.TxRef, pkg.TxRefPrefix))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].LineNo)

	var snapshot []map[string]any
	require.NoError(t, json.Unmarshal(order.ItemsJSON, &snapshot))
	assert.Equal(t, "Math 3", snapshot[0]["title"])

	stored, err := f.orders.FindByTxRef(context.Background(), nil, order.TxRef)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, 1, f.dispatcher.count(events.EventOrderCreated))
}

func TestCreateOrder_KeepsClientReference(t *testing.T) {
	f := newOrderFixture()
	req := validRequest()
	req.TxRef = "BBA-CLIENT-1"

	order, err := f.service.CreateOrder(context.Background(), "trace", req)
	require.NoError(t, err)
	assert.Equal(t, "BBA-CLIENT-1", order.TxRef)

	_, err = f.service.CreateOrder(context.Background(), "trace", req)
	assert.True(t, pkg.HasCode(err, pkg.ErrSQLDuplicateCode))
	assert.Equal(t, 1, f.dispatcher.count(events.EventOrderCreated))
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *views.CreateOrderRequest)
		want   string
	}{
		{"blank name", func(r *views.CreateOrderRequest) { r.ParentName = "  " }, "parentName is required"},
		{"bad email", func(r *views.CreateOrderRequest) { r.ParentEmail = "jane" }, "parentEmail must be a valid email address"},
		{"zero total", func(r *views.CreateOrderRequest) { r.TotalAmount = 0 }, "totalAmount must be greater than 0"},
		{"no items", func(r *views.CreateOrderRequest) { r.Items = nil }, "items is required"},
		{"zero quantity", func(r *views.CreateOrderRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity must be greater than 0"},
		{"missing isbn", func(r *views.CreateOrderRequest) { r.Items[0].ISBN = "" }, "items[0].isbn is required"},
		{"total mismatch", func(r *views.CreateOrderRequest) { r.TotalAmount = 29999 }, "does not match sum of items 30000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			req := validRequest()
			tt.mutate(&req)

			_, err := f.service.CreateOrder(context.Background(), "trace", req)
			require.Error(t, err)
			assert.True(t, pkg.HasCode(err, pkg.ErrValidationCode))
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, f.orders.orders, "nothing may be persisted")
			assert.Zero(t, f.dispatcher.count(events.EventOrderCreated))
		})
	}
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	f := newOrderFixture()
	f.db.txErr = errors.New("connection refused")

	_, err := f.service.CreateOrder(context.Background(), "trace", validRequest())
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrPersistenceCode))
	assert.Zero(t, f.dispatcher.count(events.EventOrderCreated))
}

func TestGetOrder(t *testing.T) {
	f := newOrderFixture()
	created, err := f.service.CreateOrder(context.Background(), "trace", validRequest())
	require.NoError(t, err)

	got, err := f.service.GetOrder(context.Background(), "trace", created.ID.String())
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	got, err = f.service.GetOrderByTxRef(context.Background(), "trace", created.TxRef)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.service.GetOrder(context.Background(), "trace", "3f0c4a39-2f35-4a57-9d4f-6a1f2c3b4d5e")
	assert.True(t, pkg.HasCode(err, pkg.ErrOrderNotFoundCode))

	_, err = f.service.GetOrder(context.Background(), "trace", "nope")
	assert.True(t, pkg.HasCode(err, pkg.ErrValidationCode))
}

func TestNewTxRef(t *testing.T) {
	a, b := NewTxRef(), NewTxRef()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(pkg.TxRefPrefix)+26)
}
