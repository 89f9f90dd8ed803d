package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/shopspring/decimal"
)

// PaymentVerification maps to the append-only table `payment_verifications`
type PaymentVerification struct {
	ID             int64
	OrderID        uuid.UUID
	TransactionID  string
	Outcome        pkg.VerificationOutcome
	Reason         string
	ProviderStatus string
	Amount         decimal.NullDecimal
	Currency       string
	Raw            []byte
	CreatedAt      time.Time
}

// Column widths of payment_verifications. Provider values longer than these are cut, never rejected.
const (
	maxVerificationTxIDLen     = 64
	maxVerificationStatusLen   = 32
	maxVerificationCurrencyLen = 16
)

// Clamped returns v with provider-supplied text cut to fit its columns.
func (v PaymentVerification) Clamped() PaymentVerification {
	v.TransactionID = truncate(v.TransactionID, maxVerificationTxIDLen)
	v.ProviderStatus = truncate(v.ProviderStatus, maxVerificationStatusLen)
	v.Currency = truncate(v.Currency, maxVerificationCurrencyLen)
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
