package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/dispatchlite/internal/ride/domain"
)

// NATSPublisher writes confirmed ride transitions to a NATS subject so
// downstream consumers (notifications, analytics) observe the lifecycle
// without polling the store.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher builds a publisher on the given connection. A nil
// connection yields a publisher that silently drops events, matching the
// optional-broker deployment mode.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = "dispatch.rides"
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Publish satisfies domain.EventPublisher.
func (p *NATSPublisher) Publish(ctx context.Context, event domain.RideEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ride event: %w", err)
	}
	return p.conn.PublishMsg(&nats.Msg{Subject: p.subject, Data: payload, Header: map[string][]string{
		"x-trace-id":   {traceIDFromContext(ctx)},
		"x-event-type": {string(event.Type)},
	}})
}

func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Fanout publishes each event to every wrapped publisher. The first error
// wins but remaining publishers still receive the event.
type Fanout []domain.EventPublisher

// Publish satisfies domain.EventPublisher.
func (f Fanout) Publish(ctx context.Context, event domain.RideEvent) error {
	var firstErr error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
