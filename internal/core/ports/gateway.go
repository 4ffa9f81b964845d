package ports

import (
	"context"
	"encoding/json"

	"camfleet/internal/core/domain"
)

// CommandSender is the request/response side of the agent channel. A call
// blocks until the agent answers or the command timeout elapses; it returns
// domain.ErrUnreachable when the client has no live connection.
type CommandSender interface {
	SendCommand(ctx context.Context, clientID domain.ClientID, command string, params map[string]any) (json.RawMessage, error)
}

// FrameSink receives demultiplexed camera frames from agent connections.
type FrameSink interface {
	HandleFrame(frame domain.Frame)
}

// AudioSink receives demultiplexed audio level samples from agent connections.
type AudioSink interface {
	HandleLevel(clientID domain.ClientID, level domain.AudioLevel)
}

// ViewerChannel is a per-viewer transport binding with a bounded outgoing
// queue. Send never blocks: under congestion the oldest queued message is
// replaced by the newest.
type ViewerChannel interface {
	ID() domain.ViewerID
	Send(message any) error
	Close() error
}
