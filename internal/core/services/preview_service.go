package services

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
	"camfleet/pkg/validation"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type previewKey struct {
	clientID    domain.ClientID
	cameraIndex int
	viewerID    domain.ViewerID
}

// previewPipe is one viewer's relay pipeline. The frames channel holds at
// most one frame: a new frame displaces a stale one instead of queueing.
type previewPipe struct {
	session domain.PreviewSession
	viewer  ports.ViewerChannel
	limiter *rate.Limiter
	frames  chan domain.Frame
	cancel  context.CancelFunc
	done    chan struct{}
}

func (p *previewPipe) offer(frame domain.Frame) bool {
	select {
	case p.frames <- frame:
		return true
	default:
	}
	select {
	case <-p.frames:
	default:
	}
	select {
	case p.frames <- frame:
		return true
	default:
		return false
	}
}

type previewService struct {
	registry   ports.RegistryService
	catalog    ports.CatalogService
	capture    ports.CaptureManager
	metrics    ports.MetricsRecorder
	logger     *zap.SugaredLogger
	defaultFPS int
	maxFPS     int

	mu    sync.RWMutex
	pipes map[previewKey]*previewPipe
}

func NewPreviewService(
	registry ports.RegistryService,
	catalog ports.CatalogService,
	capture ports.CaptureManager,
	metrics ports.MetricsRecorder,
	defaultFPS, maxFPS int,
	logger *zap.SugaredLogger,
) *previewService {
	return &previewService{
		registry:   registry,
		catalog:    catalog,
		capture:    capture,
		metrics:    metrics,
		logger:     logger,
		defaultFPS: defaultFPS,
		maxFPS:     maxFPS,
		pipes:      make(map[previewKey]*previewPipe),
	}
}

func (s *previewService) Start(ctx context.Context, clientID domain.ClientID, cameraIndex int, viewer ports.ViewerChannel, fps int) (*domain.PreviewSession, error) {
	client, err := s.registry.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Online() {
		return nil, domain.ErrUnreachable
	}
	if _, ok := s.catalog.Camera(clientID, cameraIndex); !ok {
		return nil, domain.ErrInvalidParameters
	}

	if fps == 0 {
		fps = s.defaultFPS
	}
	if fps > s.maxFPS {
		fps = s.maxFPS
	}
	if err := validation.ValidateFPS(fps); err != nil {
		return nil, domain.ErrInvalidParameters
	}

	key := previewKey{clientID, cameraIndex, viewer.ID()}

	s.mu.Lock()
	if _, exists := s.pipes[key]; exists {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyActive
	}
	pipeCtx, cancel := context.WithCancel(context.Background())
	pipe := &previewPipe{
		session: domain.PreviewSession{
			ClientID:    clientID,
			CameraIndex: cameraIndex,
			ViewerID:    viewer.ID(),
			FPS:         fps,
			State:       domain.PreviewStarting,
			StartedAt:   time.Now(),
		},
		viewer:  viewer,
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
		frames:  make(chan domain.Frame, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.pipes[key] = pipe
	s.mu.Unlock()

	if err := s.capture.Acquire(ctx, clientID, cameraIndex); err != nil {
		s.mu.Lock()
		delete(s.pipes, key)
		s.mu.Unlock()
		cancel()
		return nil, err
	}

	s.mu.Lock()
	pipe.session.State = domain.PreviewActive
	session := pipe.session
	s.mu.Unlock()

	go s.pump(pipeCtx, key, pipe)
	s.metrics.RecordPreviewStarted()

	s.logger.Infow("preview started",
		"client_id", clientID, "camera_index", cameraIndex,
		"viewer_id", viewer.ID(), "fps", fps)

	return &session, nil
}

// pump relays frames to one viewer, enforcing the per-session fps cap.
// Frames arriving faster than the cap are dropped, never queued.
func (s *previewService) pump(ctx context.Context, key previewKey, pipe *previewPipe) {
	defer close(pipe.done)

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-pipe.frames:
			if !pipe.limiter.Allow() {
				s.metrics.RecordFrameDropped()
				continue
			}
			err := pipe.viewer.Send(map[string]any{
				"type":         "camera_frame",
				"client_id":    frame.ClientID,
				"camera_index": frame.CameraIndex,
				"frame":        base64.StdEncoding.EncodeToString(frame.Payload),
				"timestamp":    frame.Timestamp.UnixMilli(),
			})
			if err != nil {
				s.logger.Warnw("viewer send failed, stopping preview",
					"viewer_id", key.viewerID, "error", err)
				go s.teardown(key, true)
				return
			}
			s.metrics.RecordFrameRelayed(len(frame.Payload))
		}
	}
}

// HandleFrame fans an incoming frame out to every pipe watching that camera.
func (s *previewService) HandleFrame(frame domain.Frame) {
	s.mu.RLock()
	var targets []*previewPipe
	for key, pipe := range s.pipes {
		if key.clientID == frame.ClientID && key.cameraIndex == frame.CameraIndex {
			targets = append(targets, pipe)
		}
	}
	s.mu.RUnlock()

	for _, pipe := range targets {
		if !pipe.offer(frame) {
			s.metrics.RecordFrameDropped()
		}
	}
}

func (s *previewService) Stop(ctx context.Context, clientID domain.ClientID, cameraIndex int, viewerID domain.ViewerID) error {
	key := previewKey{clientID, cameraIndex, viewerID}

	s.mu.RLock()
	pipe, exists := s.pipes[key]
	s.mu.RUnlock()
	if !exists {
		s.logger.Debugw("stop on inactive preview ignored",
			"client_id", clientID, "camera_index", cameraIndex, "viewer_id", viewerID)
		return nil
	}

	s.teardown(key, true)

	// An explicit stop also closes the viewer's transport channel, which in
	// turn tears down any other session that viewer still held.
	if err := pipe.viewer.Close(); err != nil {
		s.logger.Debugw("viewer channel close failed", "viewer_id", viewerID, "error", err)
	}
	return nil
}

func (s *previewService) teardown(key previewKey, releaseCapture bool) {
	s.mu.Lock()
	pipe, ok := s.pipes[key]
	if ok {
		delete(s.pipes, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	pipe.cancel()
	if releaseCapture {
		s.capture.Release(context.Background(), key.clientID, key.cameraIndex)
	}
	s.metrics.RecordPreviewStopped()

	s.logger.Infow("preview stopped",
		"client_id", key.clientID, "camera_index", key.cameraIndex,
		"viewer_id", key.viewerID)
}

// ActiveViewers counts pipes per camera index for one client.
func (s *previewService) ActiveViewers(clientID domain.ClientID) map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int)
	for key := range s.pipes {
		if key.clientID == clientID {
			counts[key.cameraIndex]++
		}
	}
	return counts
}

// DropViewer tears down every pipe owned by a departed viewer.
func (s *previewService) DropViewer(viewerID domain.ViewerID) {
	s.mu.RLock()
	var keys []previewKey
	for key := range s.pipes {
		if key.viewerID == viewerID {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	for _, key := range keys {
		s.teardown(key, true)
	}
}

// ReleaseClient tears down every pipe for an offline client. The capture
// refs are dropped separately by the capture manager's own cleanup, so no
// device calls happen here.
func (s *previewService) ReleaseClient(clientID domain.ClientID) {
	s.mu.RLock()
	var keys []previewKey
	for key := range s.pipes {
		if key.clientID == clientID {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	for _, key := range keys {
		s.teardown(key, false)
	}
}
