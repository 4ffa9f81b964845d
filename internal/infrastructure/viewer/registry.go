package viewer

import (
	"sync"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
)

// Registry tracks connected viewer channels so HTTP handlers can bind a
// viewer_id from a request body to its live transport.
type Registry struct {
	mu       sync.RWMutex
	channels map[domain.ViewerID]*Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[domain.ViewerID]*Channel)}
}

func (r *Registry) Register(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
}

func (r *Registry) Get(id domain.ViewerID) (ports.ViewerChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

func (r *Registry) Unregister(id domain.ViewerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
