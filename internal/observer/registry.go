package observer

import (
	"log"
	"sync"

	"github.com/tamerwork/llm-gateway/internal/stats"
)

// Observer receives stats snapshots. Send returns an error once the
// underlying connection is gone; the registry treats that as a signal
// to drop the observer.
type Observer interface {
	ID() string
	Send(snapshot stats.Snapshot) error
}

// Registry tracks live dashboard observers and fans snapshots out to
// them. Sends happen outside the registry lock so a slow or dead
// observer never stalls registration of another.
type Registry struct {
	store *stats.Store

	mu        sync.Mutex
	observers map[string]Observer
}

// NewRegistry returns an empty registry backed by the given store.
func NewRegistry(store *stats.Store) *Registry {
	return &Registry{
		store:     store,
		observers: make(map[string]Observer),
	}
}

// Register adds an observer and immediately pushes the current
// snapshot so a freshly connected dashboard renders without waiting
// for the next event. If that first push fails, the observer is
// dropped on the spot.
func (r *Registry) Register(o Observer) {
	r.mu.Lock()
	r.observers[o.ID()] = o
	r.mu.Unlock()

	if err := o.Send(r.store.Snapshot()); err != nil {
		log.Printf("[observer] initial push failed for %s: %v", o.ID(), err)
		r.Unregister(o)
	}
}

// Unregister removes an observer. Removing an observer that is already
// gone is a no-op.
func (r *Registry) Unregister(o Observer) {
	r.mu.Lock()
	delete(r.observers, o.ID())
	r.mu.Unlock()
}

// Broadcast pushes a snapshot to every registered observer. It iterates
// a stable copy of the set taken at the start of the call, so observers
// joining or leaving mid-broadcast neither receive duplicates nor break
// iteration. Observers whose push fails are pruned; delivery to the
// rest continues regardless.
func (r *Registry) Broadcast(snapshot stats.Snapshot) {
	r.mu.Lock()
	targets := make([]Observer, 0, len(r.observers))
	for _, o := range r.observers {
		targets = append(targets, o)
	}
	r.mu.Unlock()

	var dead []Observer
	for _, o := range targets {
		if err := o.Send(snapshot); err != nil {
			log.Printf("[observer] dropping dead observer %s: %v", o.ID(), err)
			dead = append(dead, o)
		}
	}

	for _, o := range dead {
		r.Unregister(o)
	}
}

// Count reports how many observers are currently registered.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}
