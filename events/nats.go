package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events as JSON messages on NATS subjects.
type NATSPublisher struct {
	conn   Conn
	nc     *nats.Conn // set when the publisher owns the connection
	prefix string
	logger *slog.Logger
}

// NATSOption configures a NATSPublisher.
type NATSOption func(*NATSPublisher)

// WithSubjectPrefix sets the subject root.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(p *NATSPublisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) NATSOption {
	return func(p *NATSPublisher) {
		p.logger = logger
	}
}

// NewNATSPublisher publishes over an existing connection. The caller keeps
// ownership of conn.
func NewNATSPublisher(conn Conn, opts ...NATSOption) *NATSPublisher {
	p := &NATSPublisher{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, name string, opts ...NATSOption) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to NATS: %w", err)
	}
	p := NewNATSPublisher(nc, opts...)
	p.nc = nc
	return p, nil
}

// Publish sends ev on its session subject. NATS publishes are fire and
// forget, so ctx is only checked before sending.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("events: context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	subject := Subject(p.prefix, ev.SessionID, ev.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	p.logger.Debug("Published session event", "subject", subject, "bytes", len(data))
	return nil
}

// Close drains the connection if the publisher owns it.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
