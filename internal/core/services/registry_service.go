package services

import (
	"context"
	"sync"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"

	"go.uber.org/zap"
)

// ClientLifecycleHook is notified when a client goes offline so session
// owners can run their cleanup sweeps. Hooks must not block and must not
// return errors; the sweep is best-effort by contract.
type ClientLifecycleHook interface {
	ReleaseClient(clientID domain.ClientID)
}

type registryService struct {
	repo   ports.ClientRepository
	window time.Duration
	logger *zap.SugaredLogger

	mu    sync.Mutex
	hooks []ClientLifecycleHook

	stopSweep chan struct{}
	sweepOnce sync.Once
}

func NewRegistryService(repo ports.ClientRepository, heartbeatWindow time.Duration, logger *zap.SugaredLogger) *registryService {
	return &registryService{
		repo:      repo,
		window:    heartbeatWindow,
		logger:    logger,
		stopSweep: make(chan struct{}),
	}
}

// AddLifecycleHook registers a session owner for offline cleanup sweeps.
func (s *registryService) AddLifecycleHook(hook ClientLifecycleHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *registryService) List(ctx context.Context) (map[domain.ClientID]*domain.Client, error) {
	return s.repo.List(ctx)
}

func (s *registryService) ListOnline(ctx context.Context) (map[domain.ClientID]*domain.Client, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	online := make(map[domain.ClientID]*domain.Client)
	for id, c := range all {
		if c.Online() {
			online[id] = c
		}
	}
	return online, nil
}

func (s *registryService) Get(ctx context.Context, id domain.ClientID) (*domain.Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *registryService) MarkOnline(ctx context.Context, id domain.ClientID, address string) error {
	client := &domain.Client{
		ID:       id,
		Address:  address,
		Status:   domain.ClientOnline,
		LastSeen: time.Now(),
	}
	if existing, err := s.repo.GetByID(ctx, id); err == nil {
		client.Settings = existing.Settings
	}
	if err := s.repo.Upsert(ctx, client); err != nil {
		return err
	}
	s.logger.Infow("client online", "client_id", id, "address", address)
	return nil
}

func (s *registryService) MarkOffline(ctx context.Context, id domain.ClientID) error {
	if err := s.repo.SetStatus(ctx, id, domain.ClientOffline, time.Now()); err != nil {
		return err
	}
	s.logger.Infow("client offline", "client_id", id)
	s.runCleanup(id)
	return nil
}

// Heartbeat refreshes a client's liveness. Any contact restores online
// status, so a client the sweeper expired comes back as soon as its
// connection proves alive again.
func (s *registryService) Heartbeat(ctx context.Context, id domain.ClientID) error {
	now := time.Now()
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !client.Online() {
		s.logger.Infow("client back online after heartbeat", "client_id", id)
		return s.repo.SetStatus(ctx, id, domain.ClientOnline, now)
	}
	return s.repo.Touch(ctx, id, now)
}

func (s *registryService) UpdateSettings(ctx context.Context, id domain.ClientID, settings map[string]string) error {
	return s.repo.SetSettings(ctx, id, settings)
}

// StartSweeper runs the heartbeat expiry loop until StopSweeper is called.
func (s *registryService) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopSweep:
				return
			}
		}
	}()
}

func (s *registryService) StopSweeper() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
}

func (s *registryService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clients, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warnw("heartbeat sweep failed to list clients", "error", err)
		return
	}

	cutoff := time.Now().Add(-s.window)
	for id, client := range clients {
		if client.Online() && client.LastSeen.Before(cutoff) {
			s.logger.Infow("heartbeat silence window elapsed", "client_id", id, "last_seen", client.LastSeen)
			if err := s.MarkOffline(ctx, id); err != nil {
				s.logger.Warnw("failed to mark client offline", "client_id", id, "error", err)
			}
		}
	}
}

// runCleanup fires every registered lifecycle hook. Errors never propagate
// to callers; a client disconnect must not fail any in-flight operation.
func (s *registryService) runCleanup(id domain.ClientID) {
	s.mu.Lock()
	hooks := make([]ClientLifecycleHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook.ReleaseClient(id)
	}
}
