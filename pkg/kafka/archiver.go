package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"rentkar/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

var ErrArchiverClosed = errors.New("archiver is closed")

// Archiver writes every domain event to a durable Kafka topic, keyed by
// channel so per-channel ordering survives the relay.
type Archiver struct {
	writer *kafka.Writer
	log    *logger.Logger
	mu     sync.RWMutex
	closed bool
}

func NewArchiver(brokers []string, topic string, log *logger.Logger) (*Archiver, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // hash by key keeps a channel on one partition
		RequiredAcks: kafka.RequireAll,
		Compression:  compress.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error("Kafka writer error", "message", msg, "args", args)
		}),
	}

	return &Archiver{writer: writer, log: log}, nil
}

// Archive appends one event payload under the channel key.
func (a *Archiver) Archive(ctx context.Context, channel string, payload []byte) error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return ErrArchiverClosed
	}
	a.mu.RUnlock()

	err := a.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		a.log.Error("Failed to archive event", "channel", channel, "error", err)
		return err
	}
	return nil
}

func (a *Archiver) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.writer.Close()
}
