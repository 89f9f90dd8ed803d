package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	kafkautils "github.com/nimeshabuddhika/book-order-payments/pkg/kafka"
	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"go.uber.org/zap"
)

type KafkaNotifierConfig struct {
	Context    context.Context
	Logger     *zap.Logger
	Brokers    string
	Topic      string
	Partitions uint32
	Retention  time.Duration
}

type KafkaNotifier struct {
	logger     *zap.Logger
	producer   *kafka.Producer
	topic      string
	partitions uint32
}

// NewKafkaNotifier creates the order-events topic if needed and an idempotent producer for it.
func NewKafkaNotifier(cfg KafkaNotifierConfig) (*KafkaNotifier, error) {
	if cfg.Partitions == 0 {
		cfg.Partitions = 1
	}
	topicConfig := kafkautils.KafkaConfig{
		BootstrapServers: cfg.Brokers,
		Topics: []kafkautils.TopicConfig{
			{
				Topic:             cfg.Topic,
				NumPartitions:     int(cfg.Partitions),
				ReplicationFactor: 1,
				Config: map[string]string{
					"cleanup.policy": "delete",
					"retention.ms":   fmt.Sprintf("%d", cfg.Retention.Milliseconds()),
				},
			},
		},
	}
	if err := kafkautils.InitKafkaTopics(cfg.Logger, cfg.Context, topicConfig); err != nil {
		return nil, fmt.Errorf("init kafka topics: %w", err)
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"acks":               "all",
		"enable.idempotence": "true",
		"message.timeout.ms": "10000",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	cfg.Logger.Info("kafka producer created", zap.String("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	go handleDeliveryReports(cfg.Logger, p)

	return &KafkaNotifier{
		logger:     cfg.Logger,
		producer:   p,
		topic:      cfg.Topic,
		partitions: cfg.Partitions,
	}, nil
}

// Notify enqueues the event; delivery results are reported asynchronously.
func (k *KafkaNotifier) Notify(_ context.Context, event views.OrderEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	// Events for one order always land on the same partition.
	partition := int32(orderID.ID() % k.partitions)
	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: partition,
		},
		Key:   []byte(event.OrderID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: pkg.EventType, Value: []byte(event.EventType)},
			{Key: pkg.EventId, Value: []byte(event.EventID)},
		},
	}, nil)
}

func (k *KafkaNotifier) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		k.logger.Warn("kafka producer closed with undelivered events", zap.Int("remaining", remaining))
	}
	k.producer.Close()
}

func handleDeliveryReports(logger *zap.Logger, p *kafka.Producer) {
	for e := range p.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				notifyFailures.WithLabelValues("delivery").Inc()
				logger.Error("failed to publish order event", zap.ByteString("key", ev.Key), zap.Error(ev.TopicPartition.Error))
			}
		}
	}
}
