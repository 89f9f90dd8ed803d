// Package notify delivers order events to whoever needs to hear about them.
package notify

import (
	"context"

	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"go.uber.org/zap"
)

// Notifier publishes one order event. Implementations may block briefly.
type Notifier interface {
	Notify(ctx context.Context, event views.OrderEvent) error
	Close()
}

// LogNotifier writes events to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, event views.OrderEvent) error {
	l.logger.Info("order_event",
		zap.String("event_type", string(event.EventType)),
		zap.String("order_id", event.OrderID),
		zap.String("tx_ref", event.TxRef),
		zap.Int64("total_amount", event.TotalAmount),
		zap.String("currency", event.Currency))
	return nil
}

func (l *LogNotifier) Close() {}
