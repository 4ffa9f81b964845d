package services

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
	"camfleet/pkg/utils"
	"camfleet/pkg/validation"

	"go.uber.org/zap"
)

// recordingSlot serializes start/stop for one (client, camera) pair.
// The slot mutex is held across the agent round-trip so that concurrent
// starts for the same camera observe first-wins semantics.
type recordingSlot struct {
	mu      sync.Mutex
	session *domain.RecordingSession
}

type recordingService struct {
	gateway  ports.CommandSender
	registry ports.RegistryService
	catalog  ports.CatalogService
	capture  ports.CaptureManager
	outDir   string
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	slots map[cameraKey]*recordingSlot
}

func NewRecordingService(
	gateway ports.CommandSender,
	registry ports.RegistryService,
	catalog ports.CatalogService,
	capture ports.CaptureManager,
	outputDir string,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *recordingService {
	return &recordingService{
		gateway:  gateway,
		registry: registry,
		catalog:  catalog,
		capture:  capture,
		outDir:   outputDir,
		metrics:  metrics,
		logger:   logger,
		slots:    make(map[cameraKey]*recordingSlot),
	}
}

func (s *recordingService) slot(key cameraKey) *recordingSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[key]; ok {
		return sl
	}
	sl := &recordingSlot{}
	s.slots[key] = sl
	return sl
}

func (s *recordingService) Start(ctx context.Context, clientID domain.ClientID, cameraIndex int, opts domain.RecordingOptions) (*domain.RecordingSession, error) {
	client, err := s.registry.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Online() {
		return nil, domain.ErrUnreachable
	}

	if err := validation.ValidateResolution(opts.Width, opts.Height); err != nil {
		return nil, domain.ErrInvalidParameters
	}
	if opts.Bitrate != "" {
		if err := validation.ValidateBitrate(opts.Bitrate); err != nil {
			return nil, domain.ErrInvalidParameters
		}
	}
	if _, ok := s.catalog.Camera(clientID, cameraIndex); !ok {
		return nil, domain.ErrInvalidParameters
	}

	codec := opts.Codec
	if codec == "" {
		codec = domain.CodecH264
	}

	key := cameraKey{clientID, cameraIndex}
	sl := s.slot(key)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.session != nil && sl.session.State == domain.RecordingActive {
		return nil, domain.ErrAlreadyRecording
	}

	outputPath := filepath.Join(s.outDir, string(clientID),
		utils.GenerateRecordingFilename(string(clientID), cameraIndex, time.Now()))

	if err := s.capture.Acquire(ctx, clientID, cameraIndex); err != nil {
		return nil, err
	}

	params := map[string]any{
		"camera_index": cameraIndex,
		"codec_type":   string(codec),
		"filename":     outputPath,
	}
	if opts.Width > 0 {
		params["width"] = opts.Width
		params["height"] = opts.Height
	}
	if opts.Bitrate != "" {
		params["bitrate"] = opts.Bitrate
	}

	if _, err := s.gateway.SendCommand(ctx, clientID, "camera_start_recording", params); err != nil {
		s.capture.Release(ctx, clientID, cameraIndex)
		return nil, err
	}

	session := &domain.RecordingSession{
		ClientID:    clientID,
		CameraIndex: cameraIndex,
		Codec:       codec,
		Width:       opts.Width,
		Height:      opts.Height,
		Bitrate:     opts.Bitrate,
		Encoder:     s.catalog.PreferredEncoder(clientID, codec),
		State:       domain.RecordingActive,
		OutputPath:  outputPath,
		StartedAt:   time.Now(),
	}
	sl.session = session
	s.metrics.RecordRecordingStarted()

	s.logger.Infow("recording started",
		"client_id", clientID, "camera_index", cameraIndex,
		"codec", codec, "output_path", outputPath)

	copied := *session
	return &copied, nil
}

// Stop is idempotent: stopping an idle camera is a silent no-op, because
// explicit stops race disconnect-triggered cleanup sweeps.
func (s *recordingService) Stop(ctx context.Context, clientID domain.ClientID, cameraIndex int) error {
	key := cameraKey{clientID, cameraIndex}
	sl := s.slot(key)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.session == nil || sl.session.State != domain.RecordingActive {
		s.logger.Debugw("stop on idle camera ignored", "client_id", clientID, "camera_index", cameraIndex)
		return nil
	}

	_, err := s.gateway.SendCommand(ctx, clientID, "camera_stop_recording",
		map[string]any{"camera_index": cameraIndex})

	// Local state clears regardless: a backend stop failure must not leave
	// the controller claiming an active recording it cannot stop again.
	sl.session = nil
	s.capture.Release(ctx, clientID, cameraIndex)
	s.metrics.RecordRecordingStopped()

	if err != nil {
		s.logger.Warnw("backend stop failed", "client_id", clientID, "camera_index", cameraIndex, "error", err)
		return err
	}

	s.logger.Infow("recording stopped", "client_id", clientID, "camera_index", cameraIndex)
	return nil
}

func (s *recordingService) Sessions(clientID domain.ClientID) map[int]*domain.RecordingSession {
	s.mu.Lock()
	slots := make(map[cameraKey]*recordingSlot, len(s.slots))
	for k, v := range s.slots {
		if k.clientID == clientID {
			slots[k] = v
		}
	}
	s.mu.Unlock()

	sessions := make(map[int]*domain.RecordingSession)
	for key, sl := range slots {
		sl.mu.Lock()
		if sl.session != nil && sl.session.State == domain.RecordingActive {
			copied := *sl.session
			sessions[key.cameraIndex] = &copied
		}
		sl.mu.Unlock()
	}
	return sessions
}

// ReleaseClient forces every recording of an offline client back to idle
// without a device-side stop. Best effort, never errors.
func (s *recordingService) ReleaseClient(clientID domain.ClientID) {
	s.mu.Lock()
	slots := make(map[cameraKey]*recordingSlot)
	for k, v := range s.slots {
		if k.clientID == clientID {
			slots[k] = v
		}
	}
	s.mu.Unlock()

	for key, sl := range slots {
		sl.mu.Lock()
		if sl.session != nil {
			s.logger.Infow("forcing recording to idle, client offline",
				"client_id", clientID, "camera_index", key.cameraIndex)
			sl.session = nil
			s.metrics.RecordRecordingStopped()
		}
		sl.mu.Unlock()
	}
}
