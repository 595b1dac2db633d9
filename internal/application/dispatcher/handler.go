package dispatcher

import (
	"context"

	"github.com/garyjia/discussion-review/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo names a subscribed handler for logs
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
