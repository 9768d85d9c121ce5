package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// natsConn is the subset of *nats.Conn the publisher uses.
type natsConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes events as core NATS messages. The topic is used
// as the subject and the key travels in a header.
type NATSPublisher struct {
	conn natsConn
	log  zerolog.Logger
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url string, log zerolog.Logger) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is not configured")
	}
	nc, err := nats.Connect(url,
		nats.Name("wallet-ledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	log.Info().Str("url", url).Msg("nats publisher connected")
	return &NATSPublisher{conn: nc, log: log}, nil
}

// Publish sends payload on subject topic and waits for the server to
// acknowledge the flush or ctx to expire.
func (p *NATSPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	msg := nats.NewMsg(topic)
	msg.Header.Set("Wallet-Id", key)
	msg.Data = payload

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing %s: %w", topic, err)
	}
	p.log.Debug().Str("subject", topic).Str("key", key).Msg("event published")
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
