package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/nimeshabuddhika/book-order-payments/services/notification-worker/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConsumer struct {
	mu        sync.Mutex
	committed []kafka.Offset
}

func (f *fakeConsumer) SubscribeTopics([]string, kafka.RebalanceCb) error { return nil }
func (f *fakeConsumer) ReadMessage(time.Duration) (*kafka.Message, error) {
	return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
}
func (f *fakeConsumer) CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range offsets {
		f.committed = append(f.committed, o.Offset)
	}
	return offsets, nil
}
func (f *fakeConsumer) Close() error { return nil }

type fakeProducer struct {
	mu       sync.Mutex
	messages []*kafka.Message
}

func (f *fakeProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}
func (f *fakeProducer) Flush(int) int { return 0 }
func (f *fakeProducer) Close()        {}

type funcNotifications func(ctx context.Context, event views.OrderEvent) error

func (f funcNotifications) Handle(ctx context.Context, event views.OrderEvent) error { return f(ctx, event) }

func newTestHandler(ctx context.Context, n NotificationService) (*KafkaEventConfig, *fakeConsumer, *fakeProducer) {
	consumer, producer := &fakeConsumer{}, &fakeProducer{}
	h := newKafkaEventConsumer(&KafkaEventConfig{
		Context:       ctx,
		Logger:        zap.NewNop(),
		Config:        &configs.Config{KafkaOrderEventTopic: "bba.order-events", KafkaDLQTopic: "bba.order-events.dlq", MaxConcurrentJobs: 2},
		Notifications: n,
	}, consumer, producer)
	return h, consumer, producer
}

func message(t *testing.T, offset kafka.Offset, value any) *kafka.Message {
	t.Helper()
	topic := "bba.order-events"
	var b []byte
	if s, ok := value.(string); ok {
		b = []byte(s)
	} else {
		var err error
		b, err = json.Marshal(value)
		require.NoError(t, err)
	}
	return &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: offset}, Value: b}
}

func TestProcessMessage_Delivered(t *testing.T) {
	var got views.OrderEvent
	h, consumer, producer := newTestHandler(context.Background(), funcNotifications(func(_ context.Context, e views.OrderEvent) error {
		got = e
		return nil
	}))

	h.processMessage(message(t, 0, paidEvent()))

	assert.Equal(t, "BBA-1", got.TxRef)
	assert.Empty(t, producer.messages)
	assert.Equal(t, []kafka.Offset{1}, consumer.committed)
}

func TestProcessMessage_BadInputGoesToDLQ(t *testing.T) {
	invalid := paidEvent()
	invalid.EventType = "order.refunded"

	for name, value := range map[string]any{"undecodable": "{not json", "invalid": invalid} {
		t.Run(name, func(t *testing.T) {
			called := false
			h, consumer, producer := newTestHandler(context.Background(), funcNotifications(func(context.Context, views.OrderEvent) error {
				called = true
				return nil
			}))
			h.processMessage(message(t, 0, value))

			assert.False(t, called)
			require.Len(t, producer.messages, 1)
			assert.Equal(t, "bba.order-events.dlq", *producer.messages[0].TopicPartition.Topic)
			assert.Equal(t, []kafka.Offset{1}, consumer.committed)
		})
	}
}

func TestProcessMessage_DeliveryFailure(t *testing.T) {
	h, consumer, producer := newTestHandler(context.Background(), funcNotifications(func(context.Context, views.OrderEvent) error {
		return errors.New("parent jane@example.com: mail provider returned 500")
	}))
	h.processMessage(message(t, 0, paidEvent()))

	require.Len(t, producer.messages, 1)
	var parked map[string]any
	require.NoError(t, json.Unmarshal(producer.messages[0].Value, &parked))
	assert.Equal(t, "delivery_failed", parked["failureReason"])
	assert.Equal(t, "evt-1", parked["event"].(map[string]any)["eventId"])
	assert.Equal(t, []kafka.Offset{1}, consumer.committed)
}

func TestProcessMessage_ShutdownLeavesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, consumer, producer := newTestHandler(ctx, funcNotifications(func(context.Context, views.OrderEvent) error {
		cancel()
		return context.Canceled
	}))
	h.processMessage(message(t, 0, paidEvent()))

	assert.Empty(t, producer.messages)
	assert.Empty(t, consumer.committed)
}

func TestProcessMessage_CommitsInOrder(t *testing.T) {
	h, consumer, _ := newTestHandler(context.Background(), funcNotifications(func(context.Context, views.OrderEvent) error { return nil }))
	first, second := message(t, 10, paidEvent()), message(t, 11, paidEvent())
	h.commits.Seed(first)

	h.processMessage(second)
	assert.Empty(t, consumer.committed, "offset 11 waits for 10")

	h.processMessage(first)
	assert.Equal(t, []kafka.Offset{12}, consumer.committed)
}

func TestStart_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, _, _ := newTestHandler(ctx, funcNotifications(func(context.Context, views.OrderEvent) error { return nil }))
	stop, err := h.Start()
	require.NoError(t, err)

	cancel()
	done := make(chan struct{})
	go func() { stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
