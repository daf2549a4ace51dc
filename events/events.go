// Package events publishes workflow lifecycle events to NATS so external
// consumers can follow replication sessions in real time.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/tagmirror/workflow"
)

// DefaultSubjectPrefix is the root of the event subject hierarchy. Events
// publish to <prefix>.<session-id>.<event-type>.
const DefaultSubjectPrefix = "tagmirror.events"

// Publisher sends workflow events to a NATS connection. A nil connection
// disables publishing (graceful degradation), so callers can wire a
// Publisher unconditionally.
type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSubjectPrefix overrides the subject root.
func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.subjectPrefix = prefix
	}
}

// NewPublisher wires a publisher over an existing connection. conn may be
// nil.
func NewPublisher(conn *nats.Conn, logger *slog.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		conn:          conn,
		subjectPrefix: DefaultSubjectPrefix,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials a NATS server and returns a publisher over the connection.
// An empty URL returns a disabled publisher without dialing.
func Connect(url string, logger *slog.Logger, opts ...Option) (*Publisher, error) {
	if url == "" {
		return NewPublisher(nil, logger, opts...), nil
	}
	conn, err := nats.Connect(url, nats.Name("tagmirror"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewPublisher(conn, logger, opts...), nil
}

// Publish implements workflow.EventSink.
func (p *Publisher) Publish(_ context.Context, event workflow.Event) error {
	if p.conn == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(event)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish event to %s: %w", subject, err)
	}
	p.logger.Debug("event published",
		"subject", subject,
		"type", string(event.Type))
	return nil
}

// Subject returns the NATS subject an event publishes to.
func (p *Publisher) Subject(event workflow.Event) string {
	return fmt.Sprintf("%s.%s.%s", p.subjectPrefix, event.SessionID, event.Type)
}

// Close drains the underlying connection. Safe on a disabled publisher.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err.Error())
	}
}

// Enabled reports whether the publisher has a live connection.
func (p *Publisher) Enabled() bool {
	return p.conn != nil
}

// Conn exposes the underlying connection for JetStream consumers. Nil on
// a disabled publisher.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

var _ workflow.EventSink = (*Publisher)(nil)
