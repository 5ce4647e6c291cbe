// Package nats publishes planning session events to a NATS subject tree so other
// processes can follow a trip while it is being planned.
package nats

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ignatij/tripflow/internal/config"
	"github.com/ignatij/tripflow/internal/log"
	"github.com/ignatij/tripflow/pkg/service"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher is a service.Notifier that sends every session event as JSON to
// <prefix>.<instance id or session id>.<event type>.
type Publisher struct {
	conn   Conn
	prefix string
}

var _ service.Notifier = (*Publisher)(nil)

// Connect dials the server named in cfg.
func Connect(cfg config.NATSConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is not configured")
	}
	logger := log.GetLogger()
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("tripflow"),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Infof("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Debugf("NATS connection closed")
		}),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(5),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to NATS at %s", cfg.URL)
	}
	return NewPublisher(nc, cfg.SubjectPrefix), nil
}

// NewPublisher wraps an open connection.
func NewPublisher(conn Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: strings.Trim(prefix, ".")}
}

// Subject returns the subject evt is published on.
func (p *Publisher) Subject(evt service.Event) string {
	key := evt.InstanceID
	if key == "" {
		key = evt.SessionID
	}
	parts := make([]string, 0, 3)
	if p.prefix != "" {
		parts = append(parts, p.prefix)
	}
	parts = append(parts, subjectToken(key), string(evt.Type))
	return strings.Join(parts, ".")
}

func (p *Publisher) Notify(ctx context.Context, evt service.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrapf(err, "encode %s event", evt.Type)
	}
	subject := p.Subject(evt)
	if err := p.conn.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "publish to %s", subject)
	}
	return nil
}

// Close flushes buffered events and closes the connection.
func (p *Publisher) Close() error {
	defer p.conn.Close()
	return errors.Wrap(p.conn.FlushTimeout(2*time.Second), "flush NATS connection")
}

// subjectToken replaces characters NATS treats as separators or wildcards.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}
