package repositories

import (
	"testing"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/stretchr/testify/assert"
)

func TestBuildOrderWhere(t *testing.T) {
	where, args := buildOrderWhere(OrderFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	where, args = buildOrderWhere(OrderFilter{
		Status:   pkg.OrderStatusPendingPayment,
		Search:   " jane ",
		DateFrom: &from,
		DateTo:   &to,
	})
	assert.Equal(t, " WHERE status = $1 AND (parent_email ILIKE $2 OR parent_name ILIKE $2 OR tx_ref ILIKE $2)"+
		" AND created_at >= $3 AND created_at < $4", where)
	assert.Equal(t, []any{pkg.OrderStatusPendingPayment, "%jane%", from, to}, args)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "created_at DESC, id", orderBy("", ""))
	assert.Equal(t, "total_amount ASC, id", orderBy("amount", "ASC"))
	assert.Equal(t, "created_at DESC, id", orderBy("createdAt; DROP TABLE orders", "sideways"))
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	_, size = normalizePage(3, 1000)
	assert.Equal(t, 100, size)
}
