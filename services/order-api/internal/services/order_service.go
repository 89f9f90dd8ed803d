package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/database"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
	"github.com/nimeshabuddhika/book-order-payments/pkg/pricing"
	"github.com/nimeshabuddhika/book-order-payments/pkg/repositories"
	events "github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/observability"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventDispatcher hands order events to the notification port without ever failing the caller.
type EventDispatcher interface {
	Dispatch(ctx context.Context, traceID string, event events.OrderEvent)
}

type OrderService interface {
	CreateOrder(ctx context.Context, traceID string, req views.CreateOrderRequest) (models.Order, error)
	GetOrder(ctx context.Context, traceID string, id string) (models.Order, error)
	GetOrderByTxRef(ctx context.Context, traceID string, txRef string) (models.Order, error)
	GetOrderDetail(ctx context.Context, traceID string, id string) (models.Order, []models.PaymentVerification, error)
	ListOrders(ctx context.Context, traceID string, filter repositories.OrderFilter) ([]models.Order, int, error)
}

type OrderServiceConfig struct {
	Logger           *zap.Logger
	DB               database.Database
	OrderRepo        repositories.OrderRepository
	VerificationRepo repositories.VerificationRepository
	Dispatcher       EventDispatcher
	Currency         string
	MarkupRate       decimal.Decimal
}

type OrderServiceImpl struct {
	OrderServiceConfig
	validator *requestValidator
}

func NewOrderService(cfg OrderServiceConfig) OrderService {
	if cfg.Currency == "" {
		cfg.Currency = pkg.DefaultCurrency
	}
	cfg.Currency = strings.ToUpper(cfg.Currency)
	return &OrderServiceImpl{OrderServiceConfig: cfg, validator: newRequestValidator()}
}

// itemSnapshot is the immutable copy of the line items stored on the order row.
type itemSnapshot struct {
	ISBN      string  `json:"isbn"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unitPrice"`
	StudentID *string `json:"studentId,omitempty"`
}

func (s *OrderServiceImpl) CreateOrder(ctx context.Context, traceID string, req views.CreateOrderRequest) (models.Order, error) {
	if err := s.validateCreate(&req); err != nil {
		s.Logger.Warn("order rejected", zap.String(pkg.TraceId, traceID), zap.Error(err))
		return models.Order{}, err
	}

	split, err := pricing.Calculate(req.TotalAmount, s.MarkupRate)
	if err != nil {
		return models.Order{}, pkg.NewValidationError(err.Error(), err)
	}

	now := time.Now().UTC()
	order := models.Order{
		ID:            uuid.New(),
		TxRef:         req.TxRef,
		ParentID:      req.ParentID,
		ParentName:    req.ParentName,
		ParentEmail:   req.ParentEmail,
		TotalAmount:   split.Total,
		Currency:      s.Currency,
		PaymentMethod: req.PaymentMethod,
		MarkupAmount:  split.Markup,
		SupplierShare: split.SupplierShare,
		Status:        pkg.OrderStatusPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.TxRef == "" {
		order.TxRef = NewTxRef()
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = pkg.DefaultPaymentMethod
	}

	snapshot := make([]itemSnapshot, 0, len(req.Items))
	for i, it := range req.Items {
		item := models.OrderItem{
			OrderID:   order.ID,
			LineNo:    i + 1,
			ISBN:      it.ISBN,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			StudentID: it.StudentID,
		}
		order.Items = append(order.Items, item)
		snapshot = append(snapshot, itemSnapshot{ISBN: it.ISBN, Title: it.Title, Quantity: it.Quantity, UnitPrice: it.UnitPrice, StudentID: it.StudentID})
	}
	if order.ItemsJSON, err = json.Marshal(snapshot); err != nil {
		return models.Order{}, pkg.NewAppError(pkg.ErrPersistenceCode, "failed to serialize order items", err)
	}

	err = s.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.OrderRepo.Create(ctx, tx, order); err != nil {
			return err
		}
		return s.OrderRepo.CreateItems(ctx, tx, order.ID, order.Items)
	})
	if err != nil {
		if pkg.IsUniqueViolation(err, "orders_tx_ref_key") {
			return models.Order{}, pkg.NewAppError(pkg.ErrSQLDuplicateCode, "an order with this transaction reference already exists", err)
		}
		if pkg.IsCheckViolation(err, "") {
			return models.Order{}, pkg.NewValidationError("order amounts violate store constraints", err)
		}
		s.Logger.Error("failed to persist order", zap.String(pkg.TraceId, traceID), zap.String(pkg.TxRef, order.TxRef), zap.Error(err))
		return models.Order{}, pkg.NewAppError(pkg.ErrPersistenceCode, "failed to create order", err)
	}

	observability.OrdersCreated.WithLabelValues(order.Currency).Inc()
	s.Logger.Info("order created",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.OrderId, order.ID.String()),
		zap.String(pkg.TxRef, order.TxRef),
		zap.Int64("total_amount", order.TotalAmount),
		zap.Int64("markup_amount", order.MarkupAmount),
		zap.Int64("supplier_share", order.SupplierShare))

	s.Dispatcher.Dispatch(ctx, traceID, order.ToEvent(events.EventOrderCreated, now))
	return order, nil
}

func (s *OrderServiceImpl) validateCreate(req *views.CreateOrderRequest) error {
	req.ParentName = strings.TrimSpace(req.ParentName)
	req.ParentEmail = strings.TrimSpace(req.ParentEmail)
	req.TxRef = strings.TrimSpace(req.TxRef)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	for i := range req.Items {
		req.Items[i].ISBN = strings.TrimSpace(req.Items[i].ISBN)
		req.Items[i].Title = strings.TrimSpace(req.Items[i].Title)
	}
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	var sum int64
	for i, it := range req.Items {
		if it.UnitPrice > 0 && int64(it.Quantity) > math.MaxInt64/it.UnitPrice {
			return pkg.NewValidationError(fmt.Sprintf("items[%d]: line total overflows", i), nil)
		}
		line := int64(it.Quantity) * it.UnitPrice
		if sum > math.MaxInt64-line {
			return pkg.NewValidationError("order total overflows", nil)
		}
		sum += line
	}
	if sum != req.TotalAmount {
		return pkg.NewValidationError(fmt.Sprintf("totalAmount %d does not match sum of items %d", req.TotalAmount, sum), nil)
	}
	return nil
}

func (s *OrderServiceImpl) GetOrder(ctx context.Context, traceID string, id string) (models.Order, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return models.Order{}, err
	}
	order, err := s.OrderRepo.FindByID(ctx, s.DB, orderID)
	if err != nil {
		return models.Order{}, s.lookupError(traceID, err)
	}
	return s.withItems(ctx, traceID, order)
}

func (s *OrderServiceImpl) GetOrderByTxRef(ctx context.Context, traceID string, txRef string) (models.Order, error) {
	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return models.Order{}, pkg.NewValidationError("transaction reference is required", nil)
	}
	order, err := s.OrderRepo.FindByTxRef(ctx, s.DB, txRef)
	if err != nil {
		return models.Order{}, s.lookupError(traceID, err)
	}
	return s.withItems(ctx, traceID, order)
}

func (s *OrderServiceImpl) GetOrderDetail(ctx context.Context, traceID string, id string) (models.Order, []models.PaymentVerification, error) {
	order, err := s.GetOrder(ctx, traceID, id)
	if err != nil {
		return models.Order{}, nil, err
	}
	log, err := s.VerificationRepo.ListByOrder(ctx, s.DB, order.ID)
	if err != nil {
		return models.Order{}, nil, s.lookupError(traceID, err)
	}
	return order, log, nil
}

func (s *OrderServiceImpl) ListOrders(ctx context.Context, traceID string, filter repositories.OrderFilter) ([]models.Order, int, error) {
	orders, total, err := s.OrderRepo.List(ctx, s.DB, filter)
	if err != nil {
		return nil, 0, s.lookupError(traceID, err)
	}
	return orders, total, nil
}

func (s *OrderServiceImpl) withItems(ctx context.Context, traceID string, order models.Order) (models.Order, error) {
	items, err := s.OrderRepo.ListItems(ctx, s.DB, order.ID)
	if err != nil {
		return models.Order{}, s.lookupError(traceID, err)
	}
	order.Items = items
	return order, nil
}

func (s *OrderServiceImpl) lookupError(traceID string, err error) error {
	return pkg.OrderStoreError(traceID, s.Logger, "order not found", err)
}

func parseOrderID(id string) (uuid.UUID, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, pkg.NewValidationError("order id must be a UUID", err)
	}
	return orderID, nil
}

// NewTxRef generates a provider-facing transaction reference such as BBA-01J9Z3K4X5...
func NewTxRef() string {
	return pkg.TxRefPrefix + ulid.Make().String()
}
