package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/database"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
)

const orderColumns = `id, tx_ref, parent_id, parent_name, parent_email, total_amount, currency, payment_method,
	markup_amount, supplier_share, items_json, status, provider_transaction_id, verification_attempts,
	last_verification_error, needs_review, created_at, updated_at, payment_verified_at`

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Page      int
	PageSize  int
	Status    pkg.OrderStatus
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time // exclusive
	SortBy    string     // amount | createdAt
	SortOrder string     // asc | desc
}

type OrderRepository interface {
	// Create inserts the order row. The caller owns the transaction.
	Create(ctx context.Context, q database.Querier, order models.Order) error
	CreateItems(ctx context.Context, q database.Querier, orderID uuid.UUID, items []models.OrderItem) error
	FindByID(ctx context.Context, q database.Querier, id uuid.UUID) (models.Order, error)
	FindByTxRef(ctx context.Context, q database.Querier, txRef string) (models.Order, error)
	ListItems(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]models.OrderItem, error)
	// List returns one page of orders and the total number of matches.
	List(ctx context.Context, q database.Querier, filter OrderFilter) ([]models.Order, int, error)
	// MarkPaid transitions PENDING_PAYMENT -> PAID. It reports false when the row was not pending.
	MarkPaid(ctx context.Context, q database.Querier, id uuid.UUID, providerTransactionID string, verifiedAt time.Time) (bool, error)
	// RecordFailedAttempt bumps the attempt counter of a still pending order.
	RecordFailedAttempt(ctx context.Context, q database.Querier, id uuid.UUID, reason string) error
	// FlagForReview marks a pending order for manual review.
	FlagForReview(ctx context.Context, q database.Querier, id uuid.UUID, reason string) error
}

type OrderRepositoryImpl struct {
}

func NewOrderRepository() OrderRepository {
	return &OrderRepositoryImpl{}
}

func (o OrderRepositoryImpl) Create(ctx context.Context, q database.Querier, order models.Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders (id, tx_ref, parent_id, parent_name, parent_email, total_amount, currency, payment_method,
		                    markup_amount, supplier_share, items_json, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		order.ID,
		order.TxRef,
		order.ParentID,
		order.ParentName,
		order.ParentEmail,
		order.TotalAmount,
		order.Currency,
		order.PaymentMethod,
		order.MarkupAmount,
		order.SupplierShare,
		order.ItemsJSON,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

func (o OrderRepositoryImpl) CreateItems(ctx context.Context, q database.Querier, orderID uuid.UUID, items []models.OrderItem) error {
	for _, item := range items {
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (order_id, line_no, isbn, title, quantity, unit_price, student_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			orderID, item.LineNo, item.ISBN, item.Title, item.Quantity, item.UnitPrice, item.StudentID)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", item.LineNo, err)
		}
	}
	return nil
}

func (o OrderRepositoryImpl) FindByID(ctx context.Context, q database.Querier, id uuid.UUID) (models.Order, error) {
	return scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (o OrderRepositoryImpl) FindByTxRef(ctx context.Context, q database.Querier, txRef string) (models.Order, error) {
	return scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE tx_ref = $1`, txRef))
}

func (o OrderRepositoryImpl) ListItems(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]models.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, line_no, isbn, title, quantity, unit_price, student_id
		FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var it models.OrderItem
		if err = rows.Scan(&it.ID, &it.OrderID, &it.LineNo, &it.ISBN, &it.Title, &it.Quantity, &it.UnitPrice, &it.StudentID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (o OrderRepositoryImpl) List(ctx context.Context, q database.Querier, filter OrderFilter) ([]models.Order, int, error) {
	where, args := buildOrderWhere(filter)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	//calculate offset.
	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size
	args = append(args, size, offset)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		orderColumns, where, orderBy(filter.SortBy, filter.SortOrder), len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]models.Order, 0, size)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

func (o OrderRepositoryImpl) MarkPaid(ctx context.Context, q database.Querier, id uuid.UUID, providerTransactionID string, verifiedAt time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE orders
		SET status = $1, provider_transaction_id = $2, payment_verified_at = $3, updated_at = $3,
		    needs_review = FALSE, last_verification_error = NULL
		WHERE id = $4 AND status = $5`,
		pkg.OrderStatusPaid, providerTransactionID, verifiedAt, id, pkg.OrderStatusPendingPayment)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (o OrderRepositoryImpl) RecordFailedAttempt(ctx context.Context, q database.Querier, id uuid.UUID, reason string) error {
	_, err := q.Exec(ctx, `
		UPDATE orders
		SET verification_attempts = verification_attempts + 1, last_verification_error = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		reason, time.Now().UTC(), id, pkg.OrderStatusPendingPayment)
	return err
}

func (o OrderRepositoryImpl) FlagForReview(ctx context.Context, q database.Querier, id uuid.UUID, reason string) error {
	_, err := q.Exec(ctx, `
		UPDATE orders
		SET needs_review = TRUE, verification_attempts = verification_attempts + 1,
		    last_verification_error = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		reason, time.Now().UTC(), id, pkg.OrderStatusPendingPayment)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.ID,
		&order.TxRef,
		&order.ParentID,
		&order.ParentName,
		&order.ParentEmail,
		&order.TotalAmount,
		&order.Currency,
		&order.PaymentMethod,
		&order.MarkupAmount,
		&order.SupplierShare,
		&order.ItemsJSON,
		&order.Status,
		&order.ProviderTransactionID,
		&order.VerificationAttempts,
		&order.LastVerificationError,
		&order.NeedsReview,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.PaymentVerifiedAt,
	)
	return order, err
}

func buildOrderWhere(filter OrderFilter) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(parent_email ILIKE $%d OR parent_name ILIKE $%d OR tx_ref ILIKE $%d)", n, n, n))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(sortBy, sortOrder string) string {
	column := "created_at"
	if sortBy == "amount" {
		column = "total_amount"
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}
	return column + " " + direction + ", id"
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
