package kafkautils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	BootstrapServers string
	Topics           []TopicConfig
}

type TopicConfig struct {
	Topic             string
	NumPartitions     int
	ReplicationFactor int
	Config            map[string]string
}

// InitKafkaTopics creates the given topics, treating "already exists" as success.
// Broker unavailability is retried with exponential backoff for up to 2 minutes or until ctx ends.
func InitKafkaTopics(logger *zap.Logger, ctx context.Context, cnf KafkaConfig) error {
	if strings.TrimSpace(cnf.BootstrapServers) == "" {
		return errors.New("kafka bootstrap servers not configured")
	}
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cnf.BootstrapServers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	topics := make([]kafka.TopicSpecification, 0, len(cnf.Topics))
	for _, topic := range cnf.Topics {
		if topic.Topic == "" {
			return errors.New("kafka topic name is empty")
		}
		topics = append(topics, kafka.TopicSpecification{
			Topic:             topic.Topic,
			NumPartitions:     max(topic.NumPartitions, 1),
			ReplicationFactor: max(topic.ReplicationFactor, 1),
			Config:            topic.Config,
		})
	}

	operation := func() error {
		results, err := admin.CreateTopics(ctx, topics, kafka.SetAdminOperationTimeout(30*time.Second))
		if err != nil {
			logger.Warn("kafka_topic_creation_retry", zap.Error(err))
			return fmt.Errorf("failed to create topics: %w", err)
		}
		for _, result := range results {
			switch result.Error.Code() {
			case kafka.ErrNoError:
				logger.Info("Kafka topic created", zap.String("topic", result.Topic))
			case kafka.ErrTopicAlreadyExists:
				logger.Debug("Kafka topic exists", zap.String("topic", result.Topic))
			default:
				return fmt.Errorf("kafka topic %s creation failed: %v", result.Topic, result.Error)
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// HeaderValue returns the value of the first header named key.
func HeaderValue(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
