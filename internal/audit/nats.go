package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events as JSON to a JetStream subject. The subject receives
// a suffix equal to the event type, e.g. "resumeauth.events.session.sign_in".
type NATSSink struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  *slog.Logger
}

// NewNATSSink connects to url and prepares a JetStream publisher.
func NewNATSSink(url, subject string, logger *slog.Logger, opts ...nats.Option) (*NATSSink, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if subject == "" {
		subject = "resumeauth.events"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &NATSSink{conn: nc, js: js, subject: subject, logger: logger}, nil
}

func (s *NATSSink) Emit(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	if _, err := s.js.Publish(s.subject+"."+event.Type, data, nats.Context(ctx)); err != nil {
		s.logger.Warn("audit publish failed", "type", event.Type, "error", err)
	}
}

// Close drains the NATS connection.
func (s *NATSSink) Close() {
	if s == nil {
		return
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
	}
}
