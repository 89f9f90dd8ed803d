package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/database"
	"github.com/nimeshabuddhika/book-order-payments/pkg/flutterwave"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
	"github.com/nimeshabuddhika/book-order-payments/pkg/repositories"
	events "github.com/nimeshabuddhika/book-order-payments/pkg/views"
)

// fakeDB runs transactions in memory; repositories below ignore the querier.
type fakeDB struct {
	txErr error
}

var _ database.Database = (*fakeDB)(nil)

func (f *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("fakeDB: unexpected Exec")
}
func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDB: unexpected Query")
}
func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (f *fakeDB) Writer() database.Querier { return f }
func (f *fakeDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if f.txErr != nil {
		return f.txErr
	}
	return fn(ctx, nil)
}

// memOrderRepo is a mutex-guarded store with the same guarded-update semantics as the SQL repository.
type memOrderRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]models.Order
	items    map[uuid.UUID][]models.OrderItem
	paidTxns map[string]uuid.UUID

	createErr     error
	markPaidErr   error
	markPaidCalls int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:   map[uuid.UUID]models.Order{},
		items:    map[uuid.UUID][]models.OrderItem{},
		paidTxns: map[string]uuid.UUID{},
	}
}

func (m *memOrderRepo) seed(order models.Order) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	m.orders[order.ID] = order
	return order
}

func (m *memOrderRepo) get(id uuid.UUID) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memOrderRepo) Create(_ context.Context, _ database.Querier, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, o := range m.orders {
		if o.TxRef == order.TxRef {
			return &pgconn.PgError{Code: "23505", ConstraintName: "orders_tx_ref_key"}
		}
	}
	order.Items = nil
	m.orders[order.ID] = order
	return nil
}

func (m *memOrderRepo) CreateItems(_ context.Context, _ database.Querier, orderID uuid.UUID, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[orderID] = append([]models.OrderItem(nil), items...)
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, _ database.Querier, id uuid.UUID) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return models.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memOrderRepo) FindByTxRef(_ context.Context, _ database.Querier, txRef string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TxRef == txRef {
			return o, nil
		}
	}
	return models.Order{}, pgx.ErrNoRows
}

func (m *memOrderRepo) ListItems(_ context.Context, _ database.Querier, orderID uuid.UUID) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[orderID], nil
}

func (m *memOrderRepo) List(_ context.Context, _ database.Querier, filter repositories.OrderFilter) ([]models.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0)
	for _, o := range m.orders {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (m *memOrderRepo) MarkPaid(_ context.Context, _ database.Querier, id uuid.UUID, providerTransactionID string, verifiedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markPaidCalls++
	if m.markPaidErr != nil {
		return false, m.markPaidErr
	}
	o := m.orders[id]
	if o.Status != pkg.OrderStatusPendingPayment {
		return false, nil
	}
	if other, ok := m.paidTxns[providerTransactionID]; ok && other != id {
		return false, &pgconn.PgError{Code: "23505", ConstraintName: "orders_provider_transaction_id_key"}
	}
	o.Status = pkg.OrderStatusPaid
	o.ProviderTransactionID = &providerTransactionID
	o.PaymentVerifiedAt = &verifiedAt
	o.NeedsReview = false
	o.LastVerificationError = nil
	m.orders[id] = o
	m.paidTxns[providerTransactionID] = id
	return true, nil
}

func (m *memOrderRepo) RecordFailedAttempt(_ context.Context, _ database.Querier, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.VerificationAttempts++
	o.LastVerificationError = &reason
	m.orders[id] = o
	return nil
}

func (m *memOrderRepo) FlagForReview(_ context.Context, _ database.Querier, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.VerificationAttempts++
	o.NeedsReview = true
	o.LastVerificationError = &reason
	m.orders[id] = o
	return nil
}

type memVerificationRepo struct {
	mu  sync.Mutex
	log []models.PaymentVerification
}

func (m *memVerificationRepo) Append(_ context.Context, _ database.Querier, v models.PaymentVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, v)
	return nil
}

func (m *memVerificationRepo) ListByOrder(_ context.Context, _ database.Querier, orderID uuid.UUID) ([]models.PaymentVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PaymentVerification, 0)
	for _, v := range m.log {
		if v.OrderID == orderID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVerificationRepo) outcomes() []pkg.VerificationOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pkg.VerificationOutcome, 0, len(m.log))
	for _, v := range m.log {
		out = append(out, v.Outcome)
	}
	return out
}

type fakeVerifier struct {
	mu       sync.Mutex
	calls    int
	verifyFn func(transactionID string) (flutterwave.VerificationResult, error)
	byRefFn  func(txRef string) (flutterwave.VerificationResult, error)
}

func (f *fakeVerifier) VerifyTransaction(_ context.Context, transactionID string) (flutterwave.VerificationResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.verifyFn(transactionID)
}

func (f *fakeVerifier) VerifyByReference(_ context.Context, txRef string) (flutterwave.VerificationResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.byRefFn(txRef)
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (r *recordingDispatcher) Dispatch(_ context.Context, _ string, event events.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingDispatcher) count(eventType events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context) bool { return false }
