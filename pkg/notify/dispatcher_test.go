package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type funcNotifier struct {
	notifyFn func(ctx context.Context, event views.OrderEvent) error
}

func (f funcNotifier) Notify(ctx context.Context, event views.OrderEvent) error {
	return f.notifyFn(ctx, event)
}
func (f funcNotifier) Close() {}

func TestDispatcher_SwallowsErrorsAndPanics(t *testing.T) {
	event := views.OrderEvent{EventType: views.EventOrderPaid, OrderID: "o-1", TxRef: "BBA-1"}

	failing := NewDispatcher(zap.NewNop(), funcNotifier{notifyFn: func(context.Context, views.OrderEvent) error {
		return errors.New("broker down")
	}}, time.Second)
	assert.NotPanics(t, func() { failing.Dispatch(context.Background(), "trace", event) })

	panicking := NewDispatcher(zap.NewNop(), funcNotifier{notifyFn: func(context.Context, views.OrderEvent) error {
		panic("boom")
	}}, time.Second)
	assert.NotPanics(t, func() { panicking.Dispatch(context.Background(), "trace", event) })
}

func TestDispatcher_SurvivesCancelledRequestContext(t *testing.T) {
	var got views.OrderEvent
	var ctxErr error
	d := NewDispatcher(zap.NewNop(), funcNotifier{notifyFn: func(ctx context.Context, event views.OrderEvent) error {
		got = event
		ctxErr = ctx.Err()
		return nil
	}}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, "trace", views.OrderEvent{EventType: views.EventOrderCreated, OrderID: "o-2"})

	assert.Equal(t, "o-2", got.OrderID)
	assert.NoError(t, ctxErr)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(zap.NewNop()).Notify(context.Background(), views.OrderEvent{}))
}
