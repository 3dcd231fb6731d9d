package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// PostedEventProducer publishes LedgerEntryPosted events after the posting
// transaction has committed. Downstream dashboards and reconciliation jobs
// consume this topic; it carries no posting-critical state.
type PostedEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new posted-event producer and ensures topic exists
func NewPostedEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*PostedEventProducer, error) {
	if cfg.PostedEventTopic == "" {
		return nil, fmt.Errorf("kafka posted event topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for posted event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.PostedEventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure posted event topic %s exists: %w", cfg.PostedEventTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.PostedEventTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.PostedEventTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.PostedEventTopic, "count", len(messages))
			}
		},
	}

	return &PostedEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.PostedEventTopic,
	}, nil
}

func (p *PostedEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for posted event producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish posted event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via posted event producer: %w", p.topic, err)
	}

	p.logger.Debug("Published posted event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *PostedEventProducer) Close() error {
	p.logger.Info("Closing posted-event Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close posted event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
