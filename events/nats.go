package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject root used when none is configured.
const DefaultSubjectPrefix = "planmesh"

// NATSOptions configures a NATSPublisher.
type NATSOptions struct {
	SubjectPrefix string
}

// NATSPublisher publishes events as JSON messages on a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
	opts NATSOptions
}

// NewNATSPublisher wraps an established connection. The caller keeps
// ownership of conn.
func NewNATSPublisher(conn *nats.Conn, optFns ...func(o *NATSOptions)) *NATSPublisher {
	opts := NATSOptions{SubjectPrefix: DefaultSubjectPrefix}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &NATSPublisher{conn: conn, opts: opts}
}

// ConnectNATS dials url and returns a publisher that owns the connection.
// Close the connection through Conn().Close when done.
func ConnectNATS(url string, optFns ...func(o *NATSOptions)) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("planmesh"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewNATSPublisher(conn, optFns...), nil
}

// Conn returns the underlying connection.
func (p *NATSPublisher) Conn() *nats.Conn { return p.conn }

// Subject returns the subject ev is published on.
func (p *NATSPublisher) Subject(ev Event) string {
	return strings.Join([]string{p.opts.SubjectPrefix, subjectToken(ev.Plan), string(ev.Type)}, ".")
}

// Publish implements Publisher. NATS publish does not take a context, so ctx
// is only checked before publishing.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	if p.conn == nil {
		return errors.New("nats publisher has no connection")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(p.Subject(ev), data)
}

// subjectToken replaces characters NATS treats specially in subjects.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
