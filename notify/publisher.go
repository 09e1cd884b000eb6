// Package notify publishes dispatch outcomes to NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/contentmesh/envelope"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "contentmesh.dispatch"

// Publisher sends each envelope as JSON on <prefix>.<kind>.<status>.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
}

// Connect dials NATS and returns a publisher that owns the connection.
func Connect(url, prefix string) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("nats url is empty")
	}
	conn, err := nats.Connect(url,
		nats.Name("contentmesh"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := NewPublisher(conn, prefix)
	p.owned = true
	return p, nil
}

// NewPublisher wraps an existing connection. Close does not close it.
func NewPublisher(conn *nats.Conn, prefix string) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an envelope is published on.
func (p *Publisher) Subject(env *envelope.Envelope) string {
	kind := string(env.Kind)
	if kind == "" {
		kind = "unknown"
	}
	return p.prefix + "." + kind + "." + string(env.Status)
}

// Publish sends env. The message id header carries the execution id.
func (p *Publisher) Publish(_ context.Context, env *envelope.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := nats.NewMsg(p.Subject(env))
	msg.Header.Set(nats.MsgIdHdr, env.ExecutionID)
	msg.Data = data

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *Publisher) Close() error {
	if p.conn == nil || !p.owned {
		return nil
	}
	return p.conn.Drain()
}
