package services

import (
	"context"
	"fmt"
	"sync"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"

	"go.uber.org/zap"
)

type cameraKey struct {
	clientID    domain.ClientID
	cameraIndex int
}

func (k cameraKey) String() string {
	return fmt.Sprintf("%s/cam%d", k.clientID, k.cameraIndex)
}

// captureManager reference-counts the per-camera upstream capture resource.
// The agent-side stream is opened on the 0->1 transition and closed,
// best-effort, on 1->0.
type captureManager struct {
	gateway ports.CommandSender
	logger  *zap.SugaredLogger

	mu   sync.Mutex
	refs map[cameraKey]int
}

func NewCaptureManager(gateway ports.CommandSender, logger *zap.SugaredLogger) *captureManager {
	return &captureManager{
		gateway: gateway,
		logger:  logger,
		refs:    make(map[cameraKey]int),
	}
}

func (m *captureManager) Acquire(ctx context.Context, clientID domain.ClientID, cameraIndex int) error {
	key := cameraKey{clientID, cameraIndex}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs[key] == 0 {
		_, err := m.gateway.SendCommand(ctx, clientID, "camera_start_streaming",
			map[string]any{"camera_index": cameraIndex})
		if err != nil {
			return err
		}
	}
	m.refs[key]++
	return nil
}

func (m *captureManager) Release(ctx context.Context, clientID domain.ClientID, cameraIndex int) {
	key := cameraKey{clientID, cameraIndex}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs[key] == 0 {
		return
	}
	m.refs[key]--
	if m.refs[key] > 0 {
		return
	}
	delete(m.refs, key)

	if _, err := m.gateway.SendCommand(ctx, clientID, "camera_stop_streaming",
		map[string]any{"camera_index": cameraIndex}); err != nil {
		m.logger.Warnw("best-effort capture release failed", "camera", key.String(), "error", err)
	}
}

func (m *captureManager) Refs(clientID domain.ClientID, cameraIndex int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[cameraKey{clientID, cameraIndex}]
}

// ReleaseClient drops every refcount for an offline client without device
// calls; the agent connection is already gone.
func (m *captureManager) ReleaseClient(clientID domain.ClientID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.refs {
		if key.clientID == clientID {
			delete(m.refs, key)
		}
	}
}
