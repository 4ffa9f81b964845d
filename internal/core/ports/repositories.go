package ports

import (
	"context"
	"time"

	"camfleet/internal/core/domain"
)

type ClientRepository interface {
	Upsert(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id domain.ClientID) (*domain.Client, error)
	List(ctx context.Context) (map[domain.ClientID]*domain.Client, error)
	SetStatus(ctx context.Context, id domain.ClientID, status domain.ClientStatus, at time.Time) error
	Touch(ctx context.Context, id domain.ClientID, at time.Time) error
	SetSettings(ctx context.Context, id domain.ClientID, settings map[string]string) error
}
