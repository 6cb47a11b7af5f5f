// Package notify delivers user notifications to the outside world.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Message is the payload handed to downstream delivery channels.
type Message struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Message    string    `json:"message"`
	ContextRef string    `json:"context_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher sends a notification message.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes notifications to a Kafka topic keyed by user.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher builds a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
	}
	return &KafkaPublisher{writer: writer, timeout: timeout}
}

// Publish writes msg. Messages for one user share a partition so their order holds.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.UserID),
		Value: data,
		Time:  msg.CreatedAt,
	}); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher records notifications in the log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs msg.
func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.logger.Info("notification",
		zap.String("notification_id", msg.ID),
		zap.String("user_id", msg.UserID),
		zap.String("context_ref", msg.ContextRef),
		zap.String("message", msg.Message),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
