package services

import (
	"context"
	"sync"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"

	"go.uber.org/zap"
)

// audioHub holds one client's monitoring state: which sources are live,
// their latest levels, and the viewers observing them.
type audioHub struct {
	active    map[domain.AudioSource]bool
	levels    map[domain.AudioSource]domain.AudioLevel
	observers map[domain.ViewerID]ports.ViewerChannel
}

func newAudioHub() *audioHub {
	return &audioHub{
		active: make(map[domain.AudioSource]bool),
		levels: map[domain.AudioSource]domain.AudioLevel{
			domain.SourceMicrophone: domain.SilentLevel(domain.SourceMicrophone),
			domain.SourceSystem:     domain.SilentLevel(domain.SourceSystem),
		},
		observers: make(map[domain.ViewerID]ports.ViewerChannel),
	}
}

type audioService struct {
	gateway  ports.CommandSender
	registry ports.RegistryService
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	mu   sync.RWMutex
	hubs map[domain.ClientID]*audioHub

	// cmdLocks serializes start/stop per client. The lock is held across
	// the agent round-trip so concurrent starts for the same source cannot
	// both pass the already-active check and double-command the agent.
	cmdMu    sync.Mutex
	cmdLocks map[domain.ClientID]*sync.Mutex
}

func NewAudioService(
	gateway ports.CommandSender,
	registry ports.RegistryService,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *audioService {
	return &audioService{
		gateway:  gateway,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		hubs:     make(map[domain.ClientID]*audioHub),
		cmdLocks: make(map[domain.ClientID]*sync.Mutex),
	}
}

func (s *audioService) cmdLock(clientID domain.ClientID) *sync.Mutex {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if l, ok := s.cmdLocks[clientID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.cmdLocks[clientID] = l
	return l
}

func (s *audioService) hub(clientID domain.ClientID) *audioHub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hubs[clientID]; ok {
		return h
	}
	h := newAudioHub()
	s.hubs[clientID] = h
	return h
}

// Start brings the requested sources up. Sources already being monitored
// are skipped, so starting "both" over a live microphone only touches the
// system source.
func (s *audioService) Start(ctx context.Context, clientID domain.ClientID, monitorType domain.MonitorType, observer ports.ViewerChannel) error {
	sources := monitorType.StartSources()
	if len(sources) == 0 {
		return domain.ErrInvalidParameters
	}

	client, err := s.registry.Get(ctx, clientID)
	if err != nil {
		return err
	}
	if !client.Online() {
		return domain.ErrUnreachable
	}

	lock := s.cmdLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	h := s.hub(clientID)

	for _, source := range sources {
		s.mu.RLock()
		alreadyActive := h.active[source]
		s.mu.RUnlock()
		if alreadyActive {
			continue
		}

		_, err := s.gateway.SendCommand(ctx, clientID, "audio_start_monitoring",
			map[string]any{"source": string(source)})
		if err != nil {
			return err
		}

		s.mu.Lock()
		h.active[source] = true
		s.mu.Unlock()

		s.logger.Infow("audio monitoring started", "client_id", clientID, "source", source)
	}

	if observer != nil {
		s.mu.Lock()
		h.observers[observer.ID()] = observer
		s.mu.Unlock()
	}
	return nil
}

// Stop brings the requested sources down. Sources not being monitored are
// skipped silently; their slots reset to the defined silent level.
func (s *audioService) Stop(ctx context.Context, clientID domain.ClientID, monitorType domain.MonitorType) error {
	sources := monitorType.StopSources()
	if len(sources) == 0 {
		return domain.ErrInvalidParameters
	}

	lock := s.cmdLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	h, ok := s.hubs[clientID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	var lastErr error
	for _, source := range sources {
		s.mu.RLock()
		active := h.active[source]
		s.mu.RUnlock()
		if !active {
			continue
		}

		if _, err := s.gateway.SendCommand(ctx, clientID, "audio_stop_monitoring",
			map[string]any{"source": string(source)}); err != nil {
			s.logger.Warnw("backend audio stop failed",
				"client_id", clientID, "source", source, "error", err)
			lastErr = err
		}

		s.mu.Lock()
		delete(h.active, source)
		h.levels[source] = domain.SilentLevel(source)
		s.mu.Unlock()

		s.logger.Infow("audio monitoring stopped", "client_id", clientID, "source", source)
	}

	s.mu.Lock()
	if len(h.active) == 0 {
		delete(s.hubs, clientID)
	}
	s.mu.Unlock()

	return lastErr
}

// HandleLevel routes one telemetry sample to its source slot and fans it
// out to observers. Samples for sources that were never started, or with
// an unknown source tag, are counted and dropped.
func (s *audioService) HandleLevel(clientID domain.ClientID, level domain.AudioLevel) {
	if level.Source != domain.SourceMicrophone && level.Source != domain.SourceSystem {
		s.metrics.RecordUnknownAudioSource()
		s.logger.Debugw("dropping sample with unknown source",
			"client_id", clientID, "source", level.Source)
		return
	}

	s.mu.Lock()
	h, ok := s.hubs[clientID]
	if !ok || !h.active[level.Source] {
		s.mu.Unlock()
		return
	}
	if level.Timestamp.IsZero() {
		level.Timestamp = time.Now()
	}
	h.levels[level.Source] = level
	observers := make([]ports.ViewerChannel, 0, len(h.observers))
	for _, obs := range h.observers {
		observers = append(observers, obs)
	}
	s.mu.Unlock()

	s.metrics.RecordAudioSample()

	payload := map[string]any{
		"type":      "audio_level",
		"client_id": clientID,
		"source":    level.Source,
		"rms":       level.RMS,
		"db":        level.DB,
		"peak":      level.Peak,
		"timestamp": level.Timestamp.UnixMilli(),
	}
	for _, obs := range observers {
		if err := obs.Send(payload); err != nil {
			s.DetachObserver(obs.ID())
		}
	}
}

func (s *audioService) Levels(clientID domain.ClientID) map[domain.AudioSource]domain.AudioLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hubs[clientID]
	if !ok {
		return map[domain.AudioSource]domain.AudioLevel{
			domain.SourceMicrophone: domain.SilentLevel(domain.SourceMicrophone),
			domain.SourceSystem:     domain.SilentLevel(domain.SourceSystem),
		}
	}
	levels := make(map[domain.AudioSource]domain.AudioLevel, len(h.levels))
	for source, level := range h.levels {
		levels[source] = level
	}
	return levels
}

func (s *audioService) Active(clientID domain.ClientID) map[domain.AudioSource]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := map[domain.AudioSource]bool{
		domain.SourceMicrophone: false,
		domain.SourceSystem:     false,
	}
	if h, ok := s.hubs[clientID]; ok {
		for source := range h.active {
			active[source] = true
		}
	}
	return active
}

// DetachObserver removes a departed viewer from every hub. Monitoring keeps
// running for the remaining observers.
func (s *audioService) DetachObserver(viewerID domain.ViewerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.hubs {
		delete(h.observers, viewerID)
	}
}

// ReleaseClient drops an offline client's hub without device calls.
func (s *audioService) ReleaseClient(clientID domain.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hubs[clientID]; ok {
		s.logger.Infow("dropping audio hub, client offline", "client_id", clientID)
		delete(s.hubs, clientID)
	}
}
