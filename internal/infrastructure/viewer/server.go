package viewer

import (
	"net/http"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
	"camfleet/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Server upgrades viewer connections and keeps them registered for the
// lifetime of the socket. The socket is downstream-only: frames and audio
// levels flow out, the read loop exists to notice disconnects.
type Server struct {
	registry *Registry
	preview  ports.PreviewService
	audio    ports.AudioService

	channelOpts  ChannelOptions
	pingInterval time.Duration
	pongTimeout  time.Duration

	logger *zap.SugaredLogger
}

func NewServer(
	registry *Registry,
	preview ports.PreviewService,
	audio ports.AudioService,
	channelOpts ChannelOptions,
	pingInterval time.Duration,
	pongTimeout time.Duration,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		registry:     registry,
		preview:      preview,
		audio:        audio,
		channelOpts:  channelOpts,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		logger:       logger,
	}
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("viewer upgrade failed", "error", err)
		return
	}

	viewerID := domain.ViewerID(utils.GenerateViewerID())
	channel := NewChannel(viewerID, conn, s.channelOpts, s.onChannelClose, s.logger)
	s.registry.Register(channel)

	s.logger.Infow("viewer connected", "viewer_id", viewerID)

	if err := channel.Send(map[string]any{
		"type":      "connected",
		"viewer_id": viewerID,
	}); err != nil {
		s.logger.Warnw("failed to send viewer hello", "viewer_id", viewerID, "error", err)
	}

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	// Browser viewers never send application traffic, so liveness rests on
	// the ping/pong exchange alone. Control frames may be written
	// concurrently with the channel's write pump.
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-channel.closed:
				return
			case <-ticker.C:
				deadline := time.Now().Add(s.channelOpts.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					channel.Close()
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	}

	channel.Close()
	s.logger.Infow("viewer disconnected", "viewer_id", viewerID)
}

// onChannelClose releases everything the departed viewer held: its preview
// pipes and audio observer slots, then its registry entry.
func (s *Server) onChannelClose(viewerID domain.ViewerID) {
	s.preview.DropViewer(viewerID)
	s.audio.DetachObserver(viewerID)
	s.registry.Unregister(viewerID)
}
