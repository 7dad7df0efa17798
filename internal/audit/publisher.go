package audit

import (
	"context"

	"github.com/google/uuid"

	"sigil/pkg/requestcontext"
)

// Store is the append-only sink behind the publisher.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByBrand(ctx context.Context, brand string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit appends an event, filling ID, timestamp, and request ID from context
// when the caller left them unset. A nil publisher is a no-op so services
// can be wired without an audit trail in tests.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if p == nil {
		return nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return p.store.Append(ctx, event)
}

// List returns the recorded events for one brand, oldest first.
func (p *Publisher) List(ctx context.Context, brand string) ([]Event, error) {
	if p == nil {
		return nil, nil
	}
	return p.store.ListByBrand(ctx, brand)
}
