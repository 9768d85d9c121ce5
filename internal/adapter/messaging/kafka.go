package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by wallet id, so all
// events of one wallet land on the same partition in commit order.
type KafkaPublisher struct {
	writer KafkaWriter
	topic  string
	log    zerolog.Logger
}

// NewKafkaPublisher creates a synchronous hash-balanced writer.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is not configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka publisher configured")
	return &KafkaPublisher{writer: writer, topic: topic, log: log}, nil
}

// Publish writes one message. The writer is bound to its configured topic;
// a different topic argument is rejected.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if topic != "" && topic != p.topic {
		return fmt.Errorf("kafka publisher is bound to topic %s, got %s", p.topic, topic)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.log.Debug().Str("topic", p.topic).Str("key", key).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
