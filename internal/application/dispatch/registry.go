package dispatch

import (
	"fmt"
	"sync"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
)

// Registry routes event types to handlers. One handler per type; handlers
// register during wiring, lookups happen on every delivery.
type Registry struct {
	mu       sync.RWMutex
	handlers map[worldevent.EventType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[worldevent.EventType]Handler{}}
}

// Register binds a handler to an event type. Rebinding a type is a wiring
// bug and fails loudly.
func (r *Registry) Register(t worldevent.EventType, h Handler) error {
	if !t.Valid() {
		return fmt.Errorf("registry: unknown event type %q", t)
	}
	if h == nil {
		return fmt.Errorf("registry: nil handler for %s", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[t]; dup {
		return fmt.Errorf("registry: handler already registered for %s", t)
	}
	r.handlers[t] = h
	return nil
}

// MustRegister is Register for static wiring in main.
func (r *Registry) MustRegister(t worldevent.EventType, h Handler) {
	if err := r.Register(t, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for t, if any.
func (r *Registry) Lookup(t worldevent.EventType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}
