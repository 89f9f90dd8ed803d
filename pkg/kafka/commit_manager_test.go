package kafkautils

import (
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingCommitter struct {
	committed []int64
	fail      bool
}

func (r *recordingCommitter) CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error) {
	if r.fail {
		return nil, errors.New("coordinator unavailable")
	}
	for _, o := range offsets {
		r.committed = append(r.committed, int64(o.Offset))
	}
	return offsets, nil
}

func message(offset int64) *kafka.Message {
	topic := "bba.order-events"
	return &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: kafka.Offset(offset)}}
}

func TestCommitManager_CommitsContiguousPrefixOnly(t *testing.T) {
	committer := &recordingCommitter{}
	m := NewCommitManager(committer, zap.NewNop())
	m.Seed(message(10))

	m.Ack("e12", message(12))
	assert.Empty(t, committer.committed, "offset 10 and 11 still in flight")

	m.Ack("e10", message(10))
	assert.Equal(t, []int64{11}, committer.committed)

	m.Ack("e11", message(11))
	assert.Equal(t, []int64{11, 13}, committer.committed)
}

func TestCommitManager_RetriesAfterFailedCommit(t *testing.T) {
	committer := &recordingCommitter{fail: true}
	m := NewCommitManager(committer, zap.NewNop())
	m.Seed(message(0))

	m.Ack("e0", message(0))
	assert.Empty(t, committer.committed)

	committer.fail = false
	m.Ack("e1", message(1))
	assert.Equal(t, []int64{2}, committer.committed)
}
