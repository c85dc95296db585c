package audit

import (
	"context"
	"log/slog"
	"time"
)

// Store is the append-only audit log persistence.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID string) ([]Event, error)
}

// Sink fans audit events out to an external system (Kafka). Optional.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. Audit is best-effort by
// policy: a failing store or sink is logged and never fails the attendance
// operation that emitted the event.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger
}

type Option func(*Publisher)

func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

func NewPublisher(store Store, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records an event. Timestamps default to now when the caller left
// them zero.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "audit append failed",
			"action", event.Action,
			"record_id", event.RecordID,
			"error", err,
		)
	}

	if p.sink != nil {
		if err := p.sink.Publish(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit publish failed",
				"action", event.Action,
				"record_id", event.RecordID,
				"error", err,
			)
		}
	}
}

// List returns the audit trail for a user.
func (p *Publisher) List(ctx context.Context, userID string) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}
