package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"camfleet/internal/core/domain"
)

// fakeGateway scripts agent responses per command and records every call.
type fakeGateway struct {
	mu        sync.Mutex
	calls     []gatewayCall
	responses map[string]json.RawMessage
	errors    map[string]error

	// onCommand, when set, runs after the call is recorded and may block
	// to widen race windows.
	onCommand func(command string)
}

type gatewayCall struct {
	clientID domain.ClientID
	command  string
	params   map[string]any
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		responses: make(map[string]json.RawMessage),
		errors:    make(map[string]error),
	}
}

func (g *fakeGateway) SendCommand(ctx context.Context, clientID domain.ClientID, command string, params map[string]any) (json.RawMessage, error) {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{clientID, command, params})
	hook := g.onCommand
	err := g.errors[command]
	resp := g.responses[command]
	g.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (g *fakeGateway) commandCount(command string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, call := range g.calls {
		if call.command == command {
			n++
		}
	}
	return n
}

func (g *fakeGateway) lastCall(command string) (gatewayCall, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.calls) - 1; i >= 0; i-- {
		if g.calls[i].command == command {
			return g.calls[i], true
		}
	}
	return gatewayCall{}, false
}

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	mu              sync.Mutex
	framesRelayed   int
	framesDropped   int
	audioSamples    int
	unknownSources  int
	previewsActive  int
	recordingsBegun int
}

func (m *fakeMetrics) RecordClientConnected()    {}
func (m *fakeMetrics) RecordClientDisconnected() {}
func (m *fakeMetrics) RecordCommand(command string, duration time.Duration, success bool) {
}

func (m *fakeMetrics) RecordFrameRelayed(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesRelayed++
}

func (m *fakeMetrics) RecordFrameDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesDropped++
}

func (m *fakeMetrics) RecordPreviewStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewsActive++
}

func (m *fakeMetrics) RecordPreviewStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewsActive--
}

func (m *fakeMetrics) RecordRecordingStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordingsBegun++
}

func (m *fakeMetrics) RecordRecordingStopped() {}

func (m *fakeMetrics) RecordAudioSample() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioSamples++
}

func (m *fakeMetrics) RecordUnknownAudioSource() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unknownSources++
}

func (m *fakeMetrics) droppedFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framesDropped
}

func (m *fakeMetrics) relayedFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framesRelayed
}

// fakeViewerChannel collects sent messages.
type fakeViewerChannel struct {
	id domain.ViewerID

	mu       sync.Mutex
	messages []any
	sendErr  error
	closed   bool
}

func newFakeViewerChannel(id string) *fakeViewerChannel {
	return &fakeViewerChannel{id: domain.ViewerID(id)}
}

func (v *fakeViewerChannel) ID() domain.ViewerID {
	return v.id
}

func (v *fakeViewerChannel) Send(message any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sendErr != nil {
		return v.sendErr
	}
	v.messages = append(v.messages, message)
	return nil
}

func (v *fakeViewerChannel) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

func (v *fakeViewerChannel) messageCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.messages)
}

func (v *fakeViewerChannel) lastMessage() any {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.messages) == 0 {
		return nil
	}
	return v.messages[len(v.messages)-1]
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
