// Package pricing computes how an order total is divided between the shop and the supplier.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var DefaultMarkupRate = decimal.RequireFromString("0.15")

var (
	ErrNonPositiveTotal = errors.New("total must be greater than zero")
	ErrInvalidRate      = errors.New("markup rate must be between 0 and 1")
)

// Split is the division of one order total. Markup + SupplierShare always equals the total.
type Split struct {
	Total         int64
	Markup        int64
	SupplierShare int64
}

// Calculate returns markup = round_half_up(total * rate) and supplier share = total - markup.
func Calculate(total int64, rate decimal.Decimal) (Split, error) {
	if total <= 0 {
		return Split{}, ErrNonPositiveTotal
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Split{}, fmt.Errorf("%w: %s", ErrInvalidRate, rate.String())
	}
	// decimal.Round rounds half away from zero, which is half-up for positive amounts.
	markup := decimal.NewFromInt(total).Mul(rate).Round(0).IntPart()
	return Split{Total: total, Markup: markup, SupplierShare: total - markup}, nil
}

// ParseRate reads a configured markup rate such as "0.15".
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrInvalidRate, s)
	}
	return rate, nil
}
