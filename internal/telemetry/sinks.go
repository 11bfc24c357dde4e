package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/helixir/thematic-screener-service/internal/bigdata"
)

// traceSender is the subset of the Bigdata client used by BigdataSink.
type traceSender interface {
	SendTrace(ctx context.Context, event bigdata.TraceEvent) error
}

// BigdataSink posts events to the Bigdata tracking API.
type BigdataSink struct {
	client traceSender
}

// NewBigdataSink creates a sink backed by client.
func NewBigdataSink(client traceSender) *BigdataSink {
	return &BigdataSink{client: client}
}

// Send posts event.
func (s *BigdataSink) Send(ctx context.Context, event Event) error {
	return s.client.SendTrace(ctx, bigdata.TraceEvent{
		EventName:  event.Name,
		Properties: event.Properties,
	})
}

// Close is a no-op.
func (s *BigdataSink) Close() error {
	return nil
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives the events.
	Topic string
	// BatchSize is the maximum number of messages per produce request.
	BatchSize int
	// BatchTimeout is how long the writer waits to fill a batch.
	BatchTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON messages keyed by Event.Key.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink writing to cfg.Topic.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	return newKafkaSinkWithWriter(writer)
}

func newKafkaSinkWithWriter(writer messageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// Send publishes event.
func (s *KafkaSink) Send(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	msg := kafka.Message{
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_name", Value: []byte(event.Name)},
		},
	}
	if event.Key != "" {
		msg.Key = []byte(event.Key)
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing event to kafka: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
