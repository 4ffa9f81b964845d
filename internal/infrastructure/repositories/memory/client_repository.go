package memory

import (
	"context"
	"sync"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
)

type MemoryClientRepository struct {
	clients map[domain.ClientID]*domain.Client
	mu      sync.RWMutex
}

func NewMemoryClientRepository() ports.ClientRepository {
	return &MemoryClientRepository{
		clients: make(map[domain.ClientID]*domain.Client),
	}
}

func (r *MemoryClientRepository) Upsert(ctx context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *client
	if existing, ok := r.clients[client.ID]; ok && copied.Settings == nil {
		copied.Settings = existing.Settings
	}
	r.clients[client.ID] = &copied
	return nil
}

func (r *MemoryClientRepository) GetByID(ctx context.Context, id domain.ClientID) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[id]
	if !exists {
		return nil, domain.ErrClientNotFound
	}

	copied := *client
	return &copied, nil
}

func (r *MemoryClientRepository) List(ctx context.Context) (map[domain.ClientID]*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make(map[domain.ClientID]*domain.Client, len(r.clients))
	for id, client := range r.clients {
		copied := *client
		clients[id] = &copied
	}
	return clients, nil
}

func (r *MemoryClientRepository) SetStatus(ctx context.Context, id domain.ClientID, status domain.ClientStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[id]
	if !exists {
		return domain.ErrClientNotFound
	}

	client.Status = status
	client.LastSeen = at
	return nil
}

func (r *MemoryClientRepository) Touch(ctx context.Context, id domain.ClientID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[id]
	if !exists {
		return domain.ErrClientNotFound
	}

	client.LastSeen = at
	return nil
}

func (r *MemoryClientRepository) SetSettings(ctx context.Context, id domain.ClientID, settings map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[id]
	if !exists {
		return domain.ErrClientNotFound
	}

	client.Settings = settings
	return nil
}
