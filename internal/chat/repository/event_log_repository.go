package repository

import (
	"context"

	errprocess "chat_delivery_service/pkg/err"

	"github.com/segmentio/kafka-go"
)

// EventLog definition the durable append-only log. Append is the
// producer side, Next blocks until the consumer group hands over the
// next raw event.
type EventLog interface {
	Append(ctx context.Context, key, value []byte) error
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

type kafkaEventLog struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

// NewKafkaEventLog create an EventLog over a kafka writer/reader pair.
// Either side may be nil when a process only produces or only consumes.
func NewKafkaEventLog(writer *kafka.Writer, reader *kafka.Reader) EventLog {
	return &kafkaEventLog{writer: writer, reader: reader}
}

// Append write one event keyed by conversation, the writer's hash
// balancer pins the key to a partition
func (l *kafkaEventLog) Append(ctx context.Context, key, value []byte) error {
	if l.writer == nil {
		return errprocess.Set("event log has no producer side")
	}
	return l.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// Next blocking read of the next committed event payload
func (l *kafkaEventLog) Next(ctx context.Context) ([]byte, error) {
	if l.reader == nil {
		return nil, errprocess.Set("event log has no consumer side")
	}
	msg, err := l.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Value, nil
}

// Close release both ends
func (l *kafkaEventLog) Close() error {
	var err error
	if l.writer != nil {
		err = l.writer.Close()
	}
	if l.reader != nil {
		if cerr := l.reader.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
