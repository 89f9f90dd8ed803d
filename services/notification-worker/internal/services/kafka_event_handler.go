package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	kafkautils "github.com/nimeshabuddhika/book-order-payments/pkg/kafka"
	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/nimeshabuddhika/book-order-payments/services/notification-worker/configs"
	"github.com/nimeshabuddhika/book-order-payments/services/notification-worker/internal/observability"
	"go.uber.org/zap"
)

// KafkaEventHandler consumes order events and returns a cleanup func from Start.
type KafkaEventHandler interface {
	Start() (func(), error)
}

// eventConsumer is the subset of *kafka.Consumer the handler uses.
type eventConsumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	Close() error
}

// dlqProducer is the subset of *kafka.Producer the handler uses.
type dlqProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

type KafkaEventConfig struct {
	Context       context.Context
	Logger        *zap.Logger
	Config        *configs.Config
	Notifications NotificationService

	// internal initialization
	consumer    eventConsumer
	dlqProducer dlqProducer
	commits     *kafkautils.CommitManager
	sem         chan struct{} // Semaphore to limit concurrent event processing
	wg          sync.WaitGroup
}

// NewKafkaEventConsumer creates the DLQ topic, the consumer and the DLQ producer.
func NewKafkaEventConsumer(cfg *KafkaEventConfig) (KafkaEventHandler, error) {
	err := kafkautils.InitKafkaTopics(cfg.Logger, cfg.Context, kafkautils.KafkaConfig{
		BootstrapServers: cfg.Config.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{{
			Topic:             cfg.Config.KafkaDLQTopic,
			NumPartitions:     int(cfg.Config.KafkaPartition),
			ReplicationFactor: 1,
			Config: map[string]string{
				"cleanup.policy": "delete",
				"retention.ms":   fmt.Sprintf("%d", cfg.Config.KafkaDLQRetention.Milliseconds()),
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("init dlq topic: %w", err)
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Config.KafkaBrokers,
		"group.id":           cfg.Config.KafkaConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false, // offsets are committed by the CommitManager
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Config.KafkaBrokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("create dlq producer: %w", err)
	}
	return newKafkaEventConsumer(cfg, consumer, producer), nil
}

func newKafkaEventConsumer(cfg *KafkaEventConfig, consumer eventConsumer, producer dlqProducer) *KafkaEventConfig {
	cfg.consumer = consumer
	cfg.dlqProducer = producer
	cfg.commits = kafkautils.NewCommitManager(consumer, cfg.Logger)
	cfg.sem = make(chan struct{}, max(cfg.Config.MaxConcurrentJobs, 1))
	return cfg
}

// Start subscribes and runs the read loop until the context is cancelled.
func (k *KafkaEventConfig) Start() (func(), error) {
	if err := k.consumer.SubscribeTopics([]string{k.Config.KafkaOrderEventTopic}, nil); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", k.Config.KafkaOrderEventTopic, err)
	}
	k.Logger.Info("listening_to_kafka_topic",
		zap.String("topic", k.Config.KafkaOrderEventTopic),
		zap.String("group", k.Config.KafkaConsumerGroup))

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for k.Context.Err() == nil {
			msg, err := k.consumer.ReadMessage(200 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				k.Logger.Error("kafka_read_failed", zap.Error(err))
				continue
			}
			k.commits.Seed(msg)

			// Acquire semaphore slot, blocking if limit is reached
			select {
			case k.sem <- struct{}{}:
			case <-k.Context.Done():
				return
			}
			k.wg.Add(1)
			observability.InflightJobs.Inc()
			go func(m *kafka.Message) {
				defer func() {
					<-k.sem
					observability.InflightJobs.Dec()
					k.wg.Done()
				}()
				k.processMessage(m)
			}(msg)
		}
	}()

	return func() {
		<-loopDone
		k.wg.Wait()
		k.dlqProducer.Flush(5000)
		k.dlqProducer.Close()
		if err := k.consumer.Close(); err != nil {
			k.Logger.Error("kafka_consumer_close_failed", zap.Error(err))
		}
		k.Logger.Info("kafka_consumer_closed")
	}, nil
}

// processMessage delivers one event. Every outcome except shutdown acks the offset;
// failures are parked on the DLQ first.
func (k *KafkaEventConfig) processMessage(msg *kafka.Message) {
	start := time.Now()
	topic := k.Config.KafkaOrderEventTopic
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}
	observability.MessagesReceived.WithLabelValues(topic).Inc()
	eventID := kafkautils.HeaderValue(msg, pkg.EventId)

	var event views.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		k.Logger.Error("event_decode_failed", zap.String(pkg.EventId, eventID), zap.Error(err))
		k.sendToDLQ(msg, eventID, "decode_error", err)
		k.commits.Ack(eventID, msg)
		return
	}
	if event.EventID != "" {
		eventID = event.EventID
	}
	logger := k.Logger.With(
		zap.String(pkg.EventId, eventID),
		zap.String(pkg.EventType, string(event.EventType)),
		zap.String(pkg.OrderId, event.OrderID))

	if err := event.Validate(); err != nil {
		logger.Error("event_validation_failed", zap.Error(err))
		k.sendToDLQ(msg, eventID, "validation_error", err)
		k.commits.Ack(eventID, msg)
		return
	}

	err := k.Notifications.Handle(k.Context, event)
	if err != nil && k.Context.Err() != nil {
		// Shutting down mid-delivery: leave the offset so the event is redelivered.
		logger.Warn("event_interrupted_by_shutdown", zap.Error(err))
		return
	}
	if err != nil {
		logger.Error("event_delivery_failed", zap.Error(err))
		k.sendToDLQ(msg, eventID, "delivery_failed", err)
		k.commits.Ack(eventID, msg)
		return
	}

	observability.EventsProcessed.WithLabelValues(string(event.EventType)).Inc()
	observability.ProcessLatency.WithLabelValues(string(event.EventType)).Observe(time.Since(start).Seconds())
	k.commits.Ack(eventID, msg)
	logger.Info("event_processed")
}

// sendToDLQ parks the original message with the failure reason.
func (k *KafkaEventConfig) sendToDLQ(msg *kafka.Message, eventID, reason string, cause error) {
	observability.DLQPublished.WithLabelValues(reason).Inc()

	var original any = string(msg.Value)
	if json.Valid(msg.Value) {
		original = json.RawMessage(msg.Value)
	}
	payload := map[string]any{
		"event":         original,
		"failureReason": reason,
		"error":         cause.Error(),
		"failedAt":      time.Now().UTC().Format(time.RFC3339Nano),
		"sourceOffset":  msg.TopicPartition.Offset.String(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		k.Logger.Error("dlq_marshal_failed", zap.String(pkg.EventId, eventID), zap.Error(err))
		return
	}

	err = k.dlqProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.Config.KafkaDLQTopic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          b,
		Headers: []kafka.Header{
			{Key: pkg.EventId, Value: []byte(eventID)},
			{Key: "failure_reason", Value: []byte(reason)},
		},
	}, nil)
	if err != nil {
		k.Logger.Error("dlq_produce_failed", zap.String(pkg.EventId, eventID), zap.Error(err))
		return
	}
	k.Logger.Info("sent_to_dlq", zap.String(pkg.EventId, eventID), zap.String("reason", reason))
}
