package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_order_api",
			Name:      "orders_created_total",
			Help:      "Orders persisted, by currency",
		},
		[]string{"currency"},
	)

	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_order_api",
			Name:      "reconcile_outcomes_total",
			Help:      "Reconciliation results by outcome",
		},
		[]string{"outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bba_order_api",
			Name:      "provider_verify_duration_seconds",
			Help:      "Latency of payment provider verification calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"result"},
	)
)

// Reconcile outcome labels.
const (
	OutcomePaid        = "paid"
	OutcomeAlreadyPaid = "already_paid"
	OutcomeUnavailable = "unavailable"
	OutcomeDeclined    = "declined"
	OutcomeReview      = "needs_review"
	OutcomePersistence = "persistence_error"
)
