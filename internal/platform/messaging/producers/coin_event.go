package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/barterverse-backend/internal/config"
	"github.com/segmentio/kafka-go"
)

// CoinEventProducer publishes committed coin events onto the bus. Keys are the
// affected user id, so all events for one wallet land on the same partition
// and keep their relative order.
type CoinEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewCoinEventProducer creates the producer and ensures the topic exists
func NewCoinEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*CoinEventProducer, error) {
	if cfg.CoinEventTopic == "" {
		return nil, fmt.Errorf("kafka coin event topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for coin event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.CoinEventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure coin event topic %s exists: %w", cfg.CoinEventTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.CoinEventTopic,
		Balancer:     &kafka.Hash{}, // Same user always maps to the same partition
		RequiredAcks: kafka.RequireOne,
		Async:        false, // The outbox poller needs the write result to mark rows processed
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write coin events", "topic", cfg.CoinEventTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Wrote coin events", "topic", cfg.CoinEventTopic, "count", len(messages))
			}
		},
	}

	return &CoinEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.CoinEventTopic,
	}, nil
}

func (p *CoinEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal coin event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish coin event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish coin event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published coin event", "topic", p.topic, "key", key)
	return nil
}

func (p *CoinEventProducer) Close() error {
	p.logger.Info("Closing coin event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
