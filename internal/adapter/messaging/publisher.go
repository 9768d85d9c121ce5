// Package messaging delivers post-commit ledger events to a broker.
package messaging

import (
	"context"
	"fmt"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// NoopPublisher discards every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                          { return nil }

// New builds the publisher selected by cfg.Provider.
func New(cfg config.EventsConfig, log zerolog.Logger) (ports.EventPublisher, error) {
	switch cfg.Provider {
	case "", "none":
		return NoopPublisher{}, nil
	case "nats":
		p, err := NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "kafka":
		p, err := NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event provider %q", cfg.Provider)
	}
}
