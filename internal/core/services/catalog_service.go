package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"

	"go.uber.org/zap"
)

type catalogService struct {
	gateway ports.CommandSender
	logger  *zap.SugaredLogger

	mu        sync.RWMutex
	snapshots map[domain.ClientID][]domain.CameraDevice
	encoders  map[domain.ClientID]*domain.EncoderCatalog
}

func NewCatalogService(gateway ports.CommandSender, logger *zap.SugaredLogger) *catalogService {
	return &catalogService{
		gateway:   gateway,
		logger:    logger,
		snapshots: make(map[domain.ClientID][]domain.CameraDevice),
		encoders:  make(map[domain.ClientID]*domain.EncoderCatalog),
	}
}

func (s *catalogService) Initialize(ctx context.Context, clientID domain.ClientID) (int, error) {
	data, err := s.gateway.SendCommand(ctx, clientID, "camera_initialize", nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		CameraCount int `json:"camera_count"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("malformed initialize response: %w", err)
	}
	return resp.CameraCount, nil
}

// Discover runs a one-shot probe against the client. The previous snapshot
// is replaced as a whole; indexes from older snapshots are void after this.
func (s *catalogService) Discover(ctx context.Context, clientID domain.ClientID) ([]domain.CameraDevice, error) {
	data, err := s.gateway.SendCommand(ctx, clientID, "camera_get_cameras", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Cameras []domain.CameraDevice `json:"cameras"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("malformed camera list: %w", err)
	}

	if len(resp.Cameras) == 0 {
		return nil, domain.ErrDeviceUnavailable
	}

	s.mu.Lock()
	s.snapshots[clientID] = resp.Cameras
	s.mu.Unlock()

	s.logger.Infow("camera discovery complete", "client_id", clientID, "cameras", len(resp.Cameras))
	return resp.Cameras, nil
}

func (s *catalogService) Encoders(ctx context.Context, clientID domain.ClientID) (*domain.EncoderCatalog, error) {
	data, err := s.gateway.SendCommand(ctx, clientID, "camera_get_encoders", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		H264 struct {
			Encoders []domain.Encoder `json:"encoders"`
		} `json:"h264"`
		H265 struct {
			Encoders []domain.Encoder `json:"encoders"`
		} `json:"h265"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("malformed encoder list: %w", err)
	}

	catalog := &domain.EncoderCatalog{
		H264: buildEncoderGroup(resp.H264.Encoders, domain.CodecH264),
		H265: buildEncoderGroup(resp.H265.Encoders, domain.CodecH265),
	}

	s.mu.Lock()
	s.encoders[clientID] = catalog
	s.mu.Unlock()

	return catalog, nil
}

// buildEncoderGroup applies the preference policy locally: hardware first,
// then the first software encoder, otherwise no preference.
func buildEncoderGroup(encoders []domain.Encoder, codec domain.CodecFamily) domain.EncoderGroup {
	for i := range encoders {
		encoders[i].Codec = codec
	}
	return domain.EncoderGroup{
		Available: len(encoders),
		Encoders:  encoders,
		Preferred: domain.PreferredEncoder(encoders),
	}
}

func (s *catalogService) Snapshot(clientID domain.ClientID) []domain.CameraDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[clientID]
}

func (s *catalogService) Camera(clientID domain.ClientID, index int) (*domain.CameraDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.snapshots[clientID] {
		if s.snapshots[clientID][i].Index == index {
			cam := s.snapshots[clientID][i]
			return &cam, true
		}
	}
	return nil, false
}

func (s *catalogService) PreferredEncoder(clientID domain.ClientID, codec domain.CodecFamily) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	catalog, ok := s.encoders[clientID]
	if !ok {
		return ""
	}
	switch codec {
	case domain.CodecH265:
		return catalog.H265.Preferred
	default:
		return catalog.H264.Preferred
	}
}
