package kafkautils

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"go.uber.org/zap"
)

// OffsetCommitter is the part of *kafka.Consumer the CommitManager needs.
type OffsetCommitter interface {
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
}

type tp struct {
	topic     string
	partition int32
}

// CommitManager commits offsets only once every earlier offset of the partition is done,
// so messages handled out of order by the worker pool are never skipped on restart.
type CommitManager struct {
	mu        sync.Mutex
	high      map[tp]int64              // highest contiguous processed offset per partition
	done      map[tp]map[int64]struct{} // processed offsets not yet committed
	committer OffsetCommitter
	log       *zap.Logger
}

func NewCommitManager(c OffsetCommitter, l *zap.Logger) *CommitManager {
	return &CommitManager{
		high:      make(map[tp]int64),
		done:      make(map[tp]map[int64]struct{}),
		committer: c,
		log:       l,
	}
}

// Seed records the offset preceding the first message seen on a partition.
func (m *CommitManager) Seed(msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tp{topic: *msg.TopicPartition.Topic, partition: msg.TopicPartition.Partition}
	if _, ok := m.high[key]; !ok {
		m.high[key] = int64(msg.TopicPartition.Offset) - 1
	}
}

// Ack marks msg processed and commits the contiguous prefix of processed offsets.
func (m *CommitManager) Ack(eventID string, msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tp{topic: *msg.TopicPartition.Topic, partition: msg.TopicPartition.Partition}
	off := int64(msg.TopicPartition.Offset)

	if _, ok := m.high[key]; !ok {
		m.high[key] = off - 1
	}
	if off <= m.high[key] {
		return
	}
	if m.done[key] == nil {
		m.done[key] = map[int64]struct{}{}
	}
	m.done[key][off] = struct{}{}

	next := m.high[key]
	for {
		if _, ok := m.done[key][next+1]; !ok {
			break
		}
		next++
		delete(m.done[key], next)
	}
	if next <= m.high[key] {
		return
	}

	tpToCommit := kafka.TopicPartition{Topic: &key.topic, Partition: key.partition, Offset: kafka.Offset(next + 1)}
	if _, err := m.committer.CommitOffsets([]kafka.TopicPartition{tpToCommit}); err != nil {
		// Keep the processed offsets so the next Ack retries the commit.
		for o := m.high[key] + 1; o <= next; o++ {
			m.done[key][o] = struct{}{}
		}
		m.log.Error("offset_commit_failed",
			zap.String(pkg.EventId, eventID),
			zap.String("topic", key.topic),
			zap.Int32("partition", key.partition),
			zap.Int64("attempted_offset", next), zap.Error(err))
		return
	}
	m.high[key] = next
	m.log.Debug("offset_committed",
		zap.String(pkg.EventId, eventID),
		zap.String("topic", key.topic),
		zap.Int32("partition", key.partition),
		zap.Int64("offset", next))
}
