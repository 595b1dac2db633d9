package workflow

import (
	"context"
	"sync"

	"github.com/garyjia/discussion-review/internal/domain/event"
)

// outbox collects events raised inside a transaction so they are published only after commit
type outbox struct {
	mu     sync.Mutex
	events []*event.Event
}

type outboxKey struct{}

func withOutbox(ctx context.Context) (context.Context, *outbox) {
	box := &outbox{}
	return context.WithValue(ctx, outboxKey{}, box), box
}

func outboxFrom(ctx context.Context) *outbox {
	box, _ := ctx.Value(outboxKey{}).(*outbox)
	return box
}

func (o *outbox) add(evt *event.Event) {
	o.mu.Lock()
	o.events = append(o.events, evt)
	o.mu.Unlock()
}

func (o *outbox) drain() []*event.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.events
	o.events = nil
	return out
}
