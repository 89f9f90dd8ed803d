package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg/database"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
)

type VerificationRepository interface {
	// Append writes one row to the verification log. Rows are never updated.
	Append(ctx context.Context, q database.Querier, v models.PaymentVerification) error
	ListByOrder(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]models.PaymentVerification, error)
}

type VerificationRepositoryImpl struct {
}

func NewVerificationRepository() VerificationRepository {
	return &VerificationRepositoryImpl{}
}

func (r VerificationRepositoryImpl) Append(ctx context.Context, q database.Querier, v models.PaymentVerification) error {
	v = v.Clamped()
	var raw any
	if len(v.Raw) > 0 {
		raw = v.Raw
	}
	_, err := q.Exec(ctx, `
		INSERT INTO payment_verifications (order_id, transaction_id, outcome, reason, provider_status, amount, currency, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.OrderID,
		v.TransactionID,
		v.Outcome,
		v.Reason,
		v.ProviderStatus,
		v.Amount,
		v.Currency,
		raw,
		v.CreatedAt,
	)
	return err
}

func (r VerificationRepositoryImpl) ListByOrder(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]models.PaymentVerification, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, transaction_id, outcome, reason, provider_status, amount, currency, raw, created_at
		FROM payment_verifications WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.PaymentVerification, 0)
	for rows.Next() {
		var v models.PaymentVerification
		if err = rows.Scan(&v.ID, &v.OrderID, &v.TransactionID, &v.Outcome, &v.Reason, &v.ProviderStatus,
			&v.Amount, &v.Currency, &v.Raw, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
