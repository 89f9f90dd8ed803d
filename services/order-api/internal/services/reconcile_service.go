package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/database"
	"github.com/nimeshabuddhika/book-order-payments/pkg/flutterwave"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
	"github.com/nimeshabuddhika/book-order-payments/pkg/repositories"
	events "github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/observability"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconcileResult is the tri-state outcome of one reconciliation.
//
//	Success                      order is PAID (now or before)
//	!Success && Retryable        nothing was decided; call again later
//	!Success && !Retryable       the payment was refused; the order needs manual review
type ReconcileResult struct {
	Success     bool
	Retryable   bool
	AlreadyPaid bool
	NeedsReview bool
	Reason      string
	// Failure is the zero ErrorCode on success.
	Failure pkg.ErrorCode
	OrderID string
	Status  pkg.OrderStatus
}

type ReconcileService interface {
	// Reconcile confirms transactionID with the provider and settles the order with the given reference.
	// Validation and not-found problems are returned as errors; every other outcome is a result.
	Reconcile(ctx context.Context, traceID string, transactionID string, orderReference string) (ReconcileResult, error)
	// ReverifyOrder runs the same pipeline for an order id, asking the provider by reference.
	ReverifyOrder(ctx context.Context, traceID string, orderID string) (ReconcileResult, error)
}

type ReconcileServiceConfig struct {
	Logger           *zap.Logger
	DB               database.Database
	OrderRepo        repositories.OrderRepository
	VerificationRepo repositories.VerificationRepository
	Verifier         flutterwave.Verifier
	Limiter          pkg.Limiter
	Dispatcher       EventDispatcher
	Now              func() time.Time
}

type ReconcileServiceImpl struct {
	ReconcileServiceConfig
}

func NewReconcileService(cfg ReconcileServiceConfig) ReconcileService {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ReconcileServiceImpl{ReconcileServiceConfig: cfg}
}

func (s *ReconcileServiceImpl) Reconcile(ctx context.Context, traceID string, transactionID string, orderReference string) (ReconcileResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	orderReference = strings.TrimSpace(orderReference)
	if transactionID == "" || orderReference == "" {
		return ReconcileResult{}, pkg.NewValidationError("transactionId and orderReference are required", nil)
	}

	order, err := s.OrderRepo.FindByTxRef(ctx, s.DB.Writer(), orderReference)
	if err != nil {
		return ReconcileResult{}, s.lookupError(traceID, err)
	}

	return s.settle(ctx, traceID, order, transactionID, func(ctx context.Context) (flutterwave.VerificationResult, error) {
		return s.Verifier.VerifyTransaction(ctx, transactionID)
	}), nil
}

func (s *ReconcileServiceImpl) ReverifyOrder(ctx context.Context, traceID string, orderID string) (ReconcileResult, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return ReconcileResult{}, err
	}
	order, err := s.OrderRepo.FindByID(ctx, s.DB.Writer(), id)
	if err != nil {
		return ReconcileResult{}, s.lookupError(traceID, err)
	}

	return s.settle(ctx, traceID, order, "", func(ctx context.Context) (flutterwave.VerificationResult, error) {
		return s.Verifier.VerifyByReference(ctx, order.TxRef)
	}), nil
}

type verifyFunc func(ctx context.Context) (flutterwave.VerificationResult, error)

// settle runs everything after the order lookup. requestedTxID is empty when verifying by reference.
func (s *ReconcileServiceImpl) settle(ctx context.Context, traceID string, order models.Order, requestedTxID string, verify verifyFunc) ReconcileResult {
	logger := s.Logger.With(
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.OrderId, order.ID.String()),
		zap.String(pkg.TxRef, order.TxRef),
		zap.String(pkg.TransactionId, requestedTxID))

	// Idempotency gate: a paid order is never re-verified or re-notified.
	if order.Status.IsTerminal() {
		observability.ReconcileOutcomes.WithLabelValues(observability.OutcomeAlreadyPaid).Inc()
		logger.Info("order already paid")
		return ReconcileResult{Success: true, AlreadyPaid: true, OrderID: order.ID.String(), Status: order.Status}
	}

	if s.Limiter != nil && !s.Limiter.Allow(ctx) {
		logger.Warn("provider rate limit reached")
		return s.unavailable(order, "payment provider rate limit reached, retry shortly")
	}

	start := time.Now()
	res, err := verify(ctx)
	if err != nil {
		observability.ProviderLatency.WithLabelValues("unavailable").Observe(time.Since(start).Seconds())
		logger.Warn("payment verification unavailable", zap.Error(err))
		return s.unavailable(order, "payment provider unavailable, retry later")
	}
	observability.ProviderLatency.WithLabelValues("answered").Observe(time.Since(start).Seconds())

	providerTxID := res.TransactionID
	if providerTxID == "" {
		providerTxID = requestedTxID
	}

	if !res.OK {
		// A declined or pending charge is a failed attempt, not a final answer.
		reason := res.Reason
		if reason == "" {
			reason = "payment was not successful"
		}
		if err := s.recordRejection(ctx, order, providerTxID, res, reason, false); err != nil {
			logger.Error("failed to record verification attempt", zap.Error(err))
			return s.persistenceFailure(order)
		}
		observability.ReconcileOutcomes.WithLabelValues(observability.OutcomeDeclined).Inc()
		logger.Info("payment not successful", zap.String("provider_status", res.ProviderStatus), zap.String("reason", reason))
		return ReconcileResult{
			Retryable: true,
			Reason:    reason,
			Failure:   pkg.ErrVerificationRejectedCode,
			OrderID:   order.ID.String(),
			Status:    order.Status,
		}
	}

	if reason := checkSettlement(order, requestedTxID, providerTxID, res); reason != "" {
		return s.reject(ctx, logger, order, providerTxID, res, reason)
	}

	now := s.Now()
	var transitioned bool
	err = s.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		ok, err := s.OrderRepo.MarkPaid(ctx, tx, order.ID, providerTxID, now)
		if err != nil {
			return err
		}
		if transitioned = ok; !ok {
			return nil
		}
		return s.VerificationRepo.Append(ctx, tx, models.PaymentVerification{
			OrderID:        order.ID,
			TransactionID:  providerTxID,
			Outcome:        pkg.VerificationOutcomeSuccess,
			ProviderStatus: res.ProviderStatus,
			Amount:         decimal.NewNullDecimal(res.Amount),
			Currency:       res.Currency,
			Raw:            res.Raw,
			CreatedAt:      now,
		})
	})
	if err != nil {
		if pkg.IsUniqueViolation(err, "orders_provider_transaction_id_key") {
			return s.reject(ctx, logger, order, providerTxID, res,
				fmt.Sprintf("provider transaction %s already settles another order", providerTxID))
		}
		logger.Error("failed to commit payment", zap.Error(err))
		return s.persistenceFailure(order)
	}

	if !transitioned {
		// A concurrent call won the guarded update and owns the notification.
		observability.ReconcileOutcomes.WithLabelValues(observability.OutcomeAlreadyPaid).Inc()
		logger.Info("order settled by a concurrent reconciliation")
		return ReconcileResult{Success: true, AlreadyPaid: true, OrderID: order.ID.String(), Status: pkg.OrderStatusPaid}
	}

	observability.ReconcileOutcomes.WithLabelValues(observability.OutcomePaid).Inc()
	logger.Info("order paid", zap.String("provider_transaction_id", providerTxID), zap.String("amount", res.Amount.String()))

	order.Status = pkg.OrderStatusPaid
	order.ProviderTransactionID = &providerTxID
	order.PaymentVerifiedAt = &now
	order.UpdatedAt = now
	if items, err := s.OrderRepo.ListItems(ctx, s.DB.Writer(), order.ID); err != nil {
		logger.Warn("failed to load items for payment notification", zap.Error(err))
	} else {
		order.Items = items
	}
	s.Dispatcher.Dispatch(ctx, traceID, order.ToEvent(events.EventOrderPaid, now))

	return ReconcileResult{Success: true, OrderID: order.ID.String(), Status: pkg.OrderStatusPaid}
}

// checkSettlement applies the fail-closed business rules to a successful provider answer.
// It returns an empty string when the payment may settle the order.
func checkSettlement(order models.Order, requestedTxID, providerTxID string, res flutterwave.VerificationResult) string {
	if providerTxID == "" {
		return "provider response carries no transaction id"
	}
	if requestedTxID != "" && res.TransactionID != "" && res.TransactionID != requestedTxID {
		return fmt.Sprintf("provider returned transaction %s for requested transaction %s", res.TransactionID, requestedTxID)
	}
	if res.TxRef != "" && res.TxRef != order.TxRef {
		return fmt.Sprintf("provider reference %s does not match order reference %s", res.TxRef, order.TxRef)
	}
	if !strings.EqualFold(res.Currency, order.Currency) {
		return fmt.Sprintf("currency mismatch: order expects %s, provider reported %s", order.Currency, res.Currency)
	}
	total := decimal.NewFromInt(order.TotalAmount)
	if res.Amount.LessThan(total) {
		return fmt.Sprintf("under-payment: paid %s %s against order total %s %s, short by %s",
			res.Amount.String(), order.Currency, total.String(), order.Currency, total.Sub(res.Amount).String())
	}
	return ""
}

func (s *ReconcileServiceImpl) reject(ctx context.Context, logger *zap.Logger, order models.Order, providerTxID string, res flutterwave.VerificationResult, reason string) ReconcileResult {
	if err := s.recordRejection(ctx, order, providerTxID, res, reason, true); err != nil {
		logger.Error("failed to flag order for review", zap.String("reason", reason), zap.Error(err))
		return s.persistenceFailure(order)
	}
	observability.ReconcileOutcomes.WithLabelValues(observability.OutcomeReview).Inc()
	logger.Warn("payment rejected, order flagged for review", zap.String("reason", reason))
	return ReconcileResult{
		Retryable:   false,
		NeedsReview: true,
		Reason:      reason,
		Failure:     pkg.ErrVerificationRejectedCode,
		OrderID:     order.ID.String(),
		Status:      order.Status,
	}
}

// recordRejection bumps the attempt counter (and optionally the review flag) and logs the answer.
func (s *ReconcileServiceImpl) recordRejection(ctx context.Context, order models.Order, providerTxID string, res flutterwave.VerificationResult, reason string, review bool) error {
	entry := models.PaymentVerification{
		OrderID:        order.ID,
		TransactionID:  providerTxID,
		Outcome:        pkg.VerificationOutcomeRejected,
		Reason:         reason,
		ProviderStatus: res.ProviderStatus,
		Currency:       res.Currency,
		Raw:            res.Raw,
		CreatedAt:      s.Now(),
	}
	if len(res.Raw) > 0 {
		entry.Amount = decimal.NewNullDecimal(res.Amount)
	}
	return s.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if review {
			err = s.OrderRepo.FlagForReview(ctx, tx, order.ID, reason)
		} else {
			err = s.OrderRepo.RecordFailedAttempt(ctx, tx, order.ID, reason)
		}
		if err != nil {
			return err
		}
		return s.VerificationRepo.Append(ctx, tx, entry)
	})
}

func (s *ReconcileServiceImpl) unavailable(order models.Order, reason string) ReconcileResult {
	observability.ReconcileOutcomes.WithLabelValues(observability.OutcomeUnavailable).Inc()
	return ReconcileResult{
		Retryable: true,
		Reason:    reason,
		Failure:   pkg.ErrVerificationUnavailableCode,
		OrderID:   order.ID.String(),
		Status:    order.Status,
	}
}

func (s *ReconcileServiceImpl) persistenceFailure(order models.Order) ReconcileResult {
	observability.ReconcileOutcomes.WithLabelValues(observability.OutcomePersistence).Inc()
	return ReconcileResult{
		Retryable: true,
		Reason:    "payment could not be recorded, retry later",
		Failure:   pkg.ErrPersistenceCode,
		OrderID:   order.ID.String(),
		Status:    order.Status,
	}
}

func (s *ReconcileServiceImpl) lookupError(traceID string, err error) error {
	return pkg.OrderStoreError(traceID, s.Logger, "no order matches this reference", err)
}
