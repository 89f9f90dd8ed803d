package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const defaultDispatchTimeout = 5 * time.Second

var (
	notifyDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_notify",
			Name:      "dispatched_total",
			Help:      "Order events handed to the notifier",
		},
		[]string{"event_type"},
	)

	notifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_notify",
			Name:      "failed_total",
			Help:      "Order events that could not be handed off, by reason",
		},
		[]string{"reason"},
	)
)

// Dispatcher isolates callers from notifier failures. Dispatch never returns an error
// and never panics, so a broken notifier cannot undo a committed order or payment.
type Dispatcher struct {
	logger   *zap.Logger
	notifier Notifier
	timeout  time.Duration
}

func NewDispatcher(logger *zap.Logger, notifier Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{logger: logger, notifier: notifier, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, traceID string, event views.OrderEvent) {
	// The request may already be finishing; notifications get their own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	err := d.safeNotify(ctx, event)
	if err != nil {
		notifyFailures.WithLabelValues("notify").Inc()
		d.logger.Error("order notification failed",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.EventType, string(event.EventType)),
			zap.String(pkg.OrderId, event.OrderID),
			zap.Error(err))
		return
	}
	notifyDispatched.WithLabelValues(string(event.EventType)).Inc()
	d.logger.Info("order notification dispatched",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.EventType, string(event.EventType)),
		zap.String(pkg.OrderId, event.OrderID))
}

func (d *Dispatcher) safeNotify(ctx context.Context, event views.OrderEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return d.notifier.Notify(ctx, event)
}

func (d *Dispatcher) Close() {
	d.notifier.Close()
}
