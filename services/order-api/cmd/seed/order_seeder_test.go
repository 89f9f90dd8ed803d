package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestBuildOrder_TotalMatchesItems(t *testing.T) {
	s := &Seeder{maxItems: 3, rng: rand.New(rand.NewSource(1))}
	for i := 0; i < 50; i++ {
		req := s.buildOrder(i)
		require.NotEmpty(t, req.Items)
		assert.LessOrEqual(t, len(req.Items), 3)

		var sum int64
		seen := map[string]bool{}
		for _, it := range req.Items {
			assert.False(t, seen[it.ISBN], "books are distinct")
			seen[it.ISBN] = true
			sum += int64(it.Quantity) * it.UnitPrice
		}
		assert.Equal(t, sum, req.TotalAmount)
	}
}

func TestRun_PostsEveryOrder(t *testing.T) {
	var received int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req views.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || r.URL.Path != "/api/v1/orders" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		atomic.AddInt64(&received, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := &Seeder{
		apiURL:     srv.URL,
		maxItems:   2,
		rng:        rand.New(rand.NewSource(1)),
		workers:    3,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		httpClient: srv.Client(),
		ctx:        context.Background(),
		logger:     zap.NewNop(),
	}
	s.Run(12)

	assert.Equal(t, int64(12), atomic.LoadInt64(&received))
	assert.Equal(t, int64(12), s.ok)
	assert.Zero(t, s.fail)
}
