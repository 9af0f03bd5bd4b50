// Package events delivers domain events to an external broker.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Message is an encoded event ready for delivery.
type Message struct {
	Key     string
	Type    string
	Value   []byte
	Created time.Time
}

// Publisher delivers messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// KafkaConfig configures the kafka writer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each message synchronously to a single topic, keyed
// so that events of the same student land on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher builds a publisher for the configured brokers.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &KafkaPublisher{
		topic: cfg.Topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// Publish writes the message and waits for broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka publisher not initialised")
	}
	created := msg.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	km := kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Value,
		Time:  created,
	}
	if msg.Type != "" {
		km.Headers = []kafka.Header{{Key: "event-type", Value: []byte(msg.Type)}}
	}
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// LogPublisher records events in the service log when no broker is configured.
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

// Publish logs the message at info level.
func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.logger.Info("domain event",
		zap.String("key", msg.Key),
		zap.String("type", msg.Type),
		zap.ByteString("payload", msg.Value),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
