package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisClientRepository persists client records so a controller restart
// does not lose the fleet roster. Live session state never goes here.
type RedisClientRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisClientRepository(client *redis.Client) ports.ClientRepository {
	return &RedisClientRepository{
		client: client,
		prefix: "camfleet:client:",
	}
}

func (r *RedisClientRepository) clientKey(id domain.ClientID) string {
	return r.prefix + string(id)
}

func (r *RedisClientRepository) indexKey() string {
	return "camfleet:clients"
}

func (r *RedisClientRepository) Upsert(ctx context.Context, client *domain.Client) error {
	stored := *client
	if stored.Settings == nil {
		if existing, err := r.GetByID(ctx, client.ID); err == nil {
			stored.Settings = existing.Settings
		}
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	if err := r.client.Set(ctx, r.clientKey(client.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set client in Redis: %w", err)
	}
	if err := r.client.SAdd(ctx, r.indexKey(), string(client.ID)).Err(); err != nil {
		return fmt.Errorf("failed to index client: %w", err)
	}
	return nil
}

func (r *RedisClientRepository) GetByID(ctx context.Context, id domain.ClientID) (*domain.Client, error) {
	data, err := r.client.Get(ctx, r.clientKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client from Redis: %w", err)
	}

	var client domain.Client
	if err := json.Unmarshal([]byte(data), &client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &client, nil
}

func (r *RedisClientRepository) List(ctx context.Context) (map[domain.ClientID]*domain.Client, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list clients from Redis: %w", err)
	}

	clients := make(map[domain.ClientID]*domain.Client, len(ids))
	for _, idStr := range ids {
		client, err := r.GetByID(ctx, domain.ClientID(idStr))
		if err != nil {
			// Skip entries whose record expired or was removed
			continue
		}
		clients[client.ID] = client
	}
	return clients, nil
}

func (r *RedisClientRepository) SetStatus(ctx context.Context, id domain.ClientID, status domain.ClientStatus, at time.Time) error {
	return r.update(ctx, id, func(client *domain.Client) {
		client.Status = status
		client.LastSeen = at
	})
}

func (r *RedisClientRepository) Touch(ctx context.Context, id domain.ClientID, at time.Time) error {
	return r.update(ctx, id, func(client *domain.Client) {
		client.LastSeen = at
	})
}

func (r *RedisClientRepository) SetSettings(ctx context.Context, id domain.ClientID, settings map[string]string) error {
	return r.update(ctx, id, func(client *domain.Client) {
		client.Settings = settings
	})
}

func (r *RedisClientRepository) update(ctx context.Context, id domain.ClientID, mutate func(*domain.Client)) error {
	client, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	mutate(client)

	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}
	if err := r.client.Set(ctx, r.clientKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set client in Redis: %w", err)
	}
	return nil
}
