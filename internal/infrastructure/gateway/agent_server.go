package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
	"camfleet/pkg/circuitbreaker"
	"camfleet/pkg/tracing"
	"camfleet/pkg/utils"
	"camfleet/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// agentMessage is the envelope for everything an agent sends. Fields beyond
// Type are populated per message kind.
type agentMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Success   bool            `json:"success,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`

	CameraIndex int             `json:"camera_index,omitempty"`
	Frame       string          `json:"frame,omitempty"`
	Source      string          `json:"source,omitempty"`
	RMS         float64         `json:"rms,omitempty"`
	DB          float64         `json:"db,omitempty"`
	Peak        float64         `json:"peak,omitempty"`
	Settings    map[string]any  `json:"settings,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
}

// commandEnvelope is what the controller writes to an agent.
type commandEnvelope struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Command   string         `json:"command"`
	Params    map[string]any `json:"params,omitempty"`
}

type commandResult struct {
	data json.RawMessage
	err  error
}

// agentConn is one live agent connection. Writes are serialized through
// writeMu; gorilla connections allow only one concurrent writer.
type agentConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	breaker *circuitbreaker.CircuitBreaker

	pendingMu sync.Mutex
	pending   map[string]chan commandResult
}

func (a *agentConn) writeJSON(v any, timeout time.Duration) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.conn.SetWriteDeadline(time.Now().Add(timeout))
	return a.conn.WriteJSON(v)
}

// AgentServer owns the agent-facing WebSocket endpoint. It demultiplexes
// the inbound stream into command responses, heartbeats, settings updates,
// camera frames and audio samples, and implements the request/response
// command channel the services use.
type AgentServer struct {
	registry ports.RegistryService
	frames   ports.FrameSink
	audio    ports.AudioSink
	metrics  ports.MetricsRecorder

	connections map[domain.ClientID]*agentConn
	mu          sync.RWMutex

	pingInterval     time.Duration
	pongTimeout      time.Duration
	writeTimeout     time.Duration
	commandTimeout   time.Duration
	maxMessageBytes  int64
	breakerThreshold int

	logger *zap.SugaredLogger
}

type Options struct {
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration
	CommandTimeout   time.Duration
	MaxMessageBytes  int64
	BreakerThreshold int
}

func NewAgentServer(
	registry ports.RegistryService,
	metrics ports.MetricsRecorder,
	opts Options,
	logger *zap.SugaredLogger,
) *AgentServer {
	return &AgentServer{
		registry:         registry,
		metrics:          metrics,
		connections:      make(map[domain.ClientID]*agentConn),
		pingInterval:     opts.PingInterval,
		pongTimeout:      opts.PongTimeout,
		writeTimeout:     opts.WriteTimeout,
		commandTimeout:   opts.CommandTimeout,
		maxMessageBytes:  opts.MaxMessageBytes,
		breakerThreshold: opts.BreakerThreshold,
		logger:           logger,
	}
}

// SetSinks wires the frame and audio consumers. The services that consume
// agent traffic also send commands through this server, so they cannot
// exist before it does; sinks are attached after construction and before
// the endpoint is exposed.
func (s *AgentServer) SetSinks(frames ports.FrameSink, audio ports.AudioSink) {
	s.frames = frames
	s.audio = audio
}

func (s *AgentServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := domain.ClientID(r.URL.Query().Get("client_id"))
	if err := validation.ValidateClientID(string(clientID)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.maxMessageBytes > 0 {
		conn.SetReadLimit(s.maxMessageBytes)
	}

	breakerCfg := circuitbreaker.DefaultConfig()
	if s.breakerThreshold > 0 {
		breakerCfg.FailureThreshold = s.breakerThreshold
	}
	agent := &agentConn{
		conn:    conn,
		breaker: circuitbreaker.New(breakerCfg),
		pending: make(map[string]chan commandResult),
	}

	s.mu.Lock()
	old, isReconnect := s.connections[clientID]
	if isReconnect && old != nil {
		old.conn.Close()
		s.logger.Infow("closing old connection for reconnecting client", "client_id", clientID)
	}
	s.connections[clientID] = agent
	s.mu.Unlock()

	if err := s.registry.MarkOnline(context.Background(), clientID, r.RemoteAddr); err != nil {
		s.logger.Errorw("failed to register client", "client_id", clientID, "error", err)
	}
	s.metrics.RecordClientConnected()
	s.logger.Infow("client connected", "client_id", clientID, "reconnect", isReconnect)

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan agentMessage, 32)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg agentMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			s.handleMessage(clientID, agent, msg)

		case <-pingTicker.C:
			agent.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			agent.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping", "client_id", clientID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading from client", "client_id", clientID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.mu.Lock()
	// Only unregister if this connection is still the current one; a
	// reconnect may already have replaced it.
	superseded := true
	if current, ok := s.connections[clientID]; ok && current == agent {
		delete(s.connections, clientID)
		superseded = false
	}
	s.mu.Unlock()

	agent.failPending(domain.ErrUnreachable)

	// A superseded connection must not mark the client offline: the
	// replacement is live and may already have sessions running.
	if superseded {
		s.logger.Infow("superseded connection closed", "client_id", clientID)
		return
	}

	if err := s.registry.MarkOffline(context.Background(), clientID); err != nil {
		s.logger.Infow("error marking client offline", "client_id", clientID, "error", err)
	}
	s.metrics.RecordClientDisconnected()
	s.logger.Infow("client disconnected", "client_id", clientID)
}

func (s *AgentServer) handleMessage(clientID domain.ClientID, agent *agentConn, msg agentMessage) {
	switch msg.Type {
	case "response":
		agent.resolve(msg)

	case "heartbeat":
		if err := s.registry.Heartbeat(context.Background(), clientID); err != nil {
			s.logger.Debugw("heartbeat for unknown client", "client_id", clientID, "error", err)
		}

	case "state_update":
		settings := make(map[string]string, len(msg.Settings))
		for k, v := range msg.Settings {
			settings[k] = fmt.Sprint(v)
		}
		if err := s.registry.UpdateSettings(context.Background(), clientID, settings); err != nil {
			s.logger.Debugw("state update for unknown client", "client_id", clientID, "error", err)
		}

	case "camera_frame":
		if s.frames == nil {
			return
		}
		payload, err := base64.StdEncoding.DecodeString(msg.Frame)
		if err != nil {
			s.logger.Debugw("dropping frame with bad encoding", "client_id", clientID, "error", err)
			return
		}
		ts := time.Now()
		if msg.Timestamp > 0 {
			ts = time.UnixMilli(msg.Timestamp)
		}
		s.frames.HandleFrame(domain.Frame{
			ClientID:    clientID,
			CameraIndex: msg.CameraIndex,
			Payload:     payload,
			Timestamp:   ts,
		})

	case "audio_level":
		if s.audio == nil {
			return
		}
		s.audio.HandleLevel(clientID, domain.AudioLevel{
			Source:    domain.AudioSource(msg.Source),
			RMS:       msg.RMS,
			DB:        msg.DB,
			Peak:      msg.Peak,
			Timestamp: time.Now(),
		})

	default:
		s.logger.Debugw("unknown message type from client",
			"client_id", clientID, "type", msg.Type)
	}
}

// SendCommand implements ports.CommandSender. It writes a command envelope
// and blocks until the matching response arrives, the command timeout
// elapses, or the context is cancelled. Backend failures reported by the
// agent come back as a domain.DeviceError with the agent's message intact.
func (s *AgentServer) SendCommand(ctx context.Context, clientID domain.ClientID, command string, params map[string]any) (json.RawMessage, error) {
	ctx, span := tracing.TraceAgentCommand(ctx, command, string(clientID))
	defer span.End()

	s.mu.RLock()
	agent, connected := s.connections[clientID]
	s.mu.RUnlock()
	if !connected {
		tracing.RecordError(ctx, domain.ErrUnreachable)
		return nil, domain.ErrUnreachable
	}

	started := time.Now()
	var result commandResult

	// The breaker sees only transport outcomes. An agent answering
	// success=false is a healthy connection reporting a device problem.
	err := agent.breaker.Execute(ctx, func() error {
		requestID := utils.GenerateRequestID()
		resultChan := make(chan commandResult, 1)

		agent.pendingMu.Lock()
		agent.pending[requestID] = resultChan
		agent.pendingMu.Unlock()

		defer func() {
			agent.pendingMu.Lock()
			delete(agent.pending, requestID)
			agent.pendingMu.Unlock()
		}()

		envelope := commandEnvelope{
			Type:      "command",
			RequestID: requestID,
			Command:   command,
			Params:    params,
		}
		if err := agent.writeJSON(envelope, s.writeTimeout); err != nil {
			return fmt.Errorf("write command: %w", err)
		}

		timer := time.NewTimer(s.commandTimeout)
		defer timer.Stop()

		select {
		case result = <-resultChan:
			return nil
		case <-timer.C:
			return fmt.Errorf("command %s timed out after %s", command, s.commandTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err != nil {
		s.metrics.RecordCommand(command, time.Since(started), false)
		tracing.RecordError(ctx, err)
		var open *circuitbreaker.ErrOpen
		if errors.As(err, &open) {
			return nil, domain.ErrUnreachable
		}
		s.logger.Warnw("command failed",
			"client_id", clientID, "command", command, "error", err)
		return nil, domain.ErrUnreachable
	}

	s.metrics.RecordCommand(command, time.Since(started), result.err == nil)
	if result.err != nil {
		return nil, result.err
	}
	return result.data, nil
}

func (a *agentConn) resolve(msg agentMessage) {
	a.pendingMu.Lock()
	resultChan, ok := a.pending[msg.RequestID]
	if ok {
		delete(a.pending, msg.RequestID)
	}
	a.pendingMu.Unlock()
	if !ok {
		return
	}

	if msg.Success {
		resultChan <- commandResult{data: msg.Data}
	} else {
		resultChan <- commandResult{err: domain.NewDeviceError(msg.Error)}
	}
}

func (a *agentConn) failPending(err error) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	for id, resultChan := range a.pending {
		resultChan <- commandResult{err: err}
		delete(a.pending, id)
	}
}

// IsConnected reports whether a client has a live agent connection.
func (s *AgentServer) IsConnected(clientID domain.ClientID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.connections[clientID]
	return ok
}

// ConnectedClients lists the clients with a live connection.
func (s *AgentServer) ConnectedClients() []domain.ClientID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]domain.ClientID, 0, len(s.connections))
	for id := range s.connections {
		clients = append(clients, id)
	}
	return clients
}
