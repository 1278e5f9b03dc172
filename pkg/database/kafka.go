package database

import (
	"fmt"
	"time"

	"chat_delivery_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry dial the first broker to confirm the cluster is
// reachable, then build the topic writer. Hash balancer keeps every event
// of one conversation key on the same partition, so per-conversation order
// survives the log.
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		var conn *kafka.Conn
		conn, err = kafka.Dial("tcp", k.Brokers[0])
		if err == nil {
			conn.Close()
			writer := &kafka.Writer{
				Addr:     kafka.TCP(k.Brokers...),
				Topic:    k.Topic,
				Balancer: &kafka.Hash{},
			}
			logger.Log.Info("Kafka writer ready",
				zap.String("topic", k.Topic),
				zap.Int("attempt", attempt),
			)
			return writer, nil
		}

		logger.Log.Warn("Failed to reach kafka broker, retrying...",
			zap.Int("attempt", attempt),
			zap.Strings("brokers", k.Brokers),
			zap.Error(err),
		)
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("unable to create kafka writer after %d attempts: %w", k.RetryCount, err)
}

// NewKafkaReaderWithRetry build a consumer-group reader for the topic.
// Offsets are committed automatically every second, consumption is
// at-least-once.
func NewKafkaReaderWithRetry(k KafkaConnection) (*kafka.Reader, error) {
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		var conn *kafka.Conn
		conn, err = kafka.Dial("tcp", k.Brokers[0])
		if err == nil {
			conn.Close()
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:        k.Brokers,
				Topic:          k.Topic,
				GroupID:        k.GroupID,
				StartOffset:    kafka.FirstOffset,
				CommitInterval: time.Second,
				MinBytes:       1,
				MaxBytes:       10e6,
			})
			logger.Log.Info("Kafka reader ready",
				zap.String("topic", k.Topic),
				zap.String("group", k.GroupID),
				zap.Int("attempt", attempt),
			)
			return reader, nil
		}

		logger.Log.Warn("Failed to reach kafka broker, retrying...",
			zap.Int("attempt", attempt),
			zap.Strings("brokers", k.Brokers),
			zap.Error(err),
		)
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("unable to create kafka reader after %d attempts: %w", k.RetryCount, err)
}
