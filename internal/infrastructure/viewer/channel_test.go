package viewer

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"camfleet/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newConnPair dials a throwaway websocket server and returns both ends.
func newConnPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("Server never accepted the connection")
	}
	return server, client
}

func testOptions() ChannelOptions {
	return ChannelOptions{QueueSize: 16, WriteTimeout: time.Second, MaxWriteFailures: 3}
}

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

func TestChannel_Delivery(t *testing.T) {
	serverConn, clientConn := newConnPair(t)
	ch := NewChannel("viewer-1", serverConn, testOptions(), nil, zaptest.NewLogger(t).Sugar())
	defer ch.Close()

	if err := ch.Send(map[string]any{"type": "connected", "viewer_id": "viewer-1"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	var msg map[string]any
	if err := clientConn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg["type"] != "connected" || msg["viewer_id"] != "viewer-1" {
		t.Errorf("Unexpected message: %v", msg)
	}
}

func TestChannel_SendNeverBlocks(t *testing.T) {
	serverConn, _ := newConnPair(t)
	ch := NewChannel("viewer-1", serverConn, ChannelOptions{
		QueueSize: 2, WriteTimeout: time.Second, MaxWriteFailures: 3,
	}, nil, zaptest.NewLogger(t).Sugar())
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if err := ch.Send(map[string]any{"seq": i}); err != nil {
				t.Errorf("Send %d failed: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked under congestion")
	}
}

func TestChannel_CloseIsIdempotent(t *testing.T) {
	serverConn, _ := newConnPair(t)

	var mu sync.Mutex
	closeCalls := 0
	onClose := func(id domain.ViewerID) {
		mu.Lock()
		defer mu.Unlock()
		closeCalls++
	}

	ch := NewChannel("viewer-1", serverConn, testOptions(), onClose, zaptest.NewLogger(t).Sugar())

	ch.Close()
	ch.Close()

	mu.Lock()
	calls := closeCalls
	mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected onClose fired once, got %d", calls)
	}

	if err := ch.Send(map[string]any{"type": "late"}); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Expected ErrChannelClosed, got: %v", err)
	}
}

func TestChannel_WriteFailuresCloseChannel(t *testing.T) {
	serverConn, clientConn := newConnPair(t)

	var mu sync.Mutex
	closed := false
	onClose := func(id domain.ViewerID) {
		mu.Lock()
		defer mu.Unlock()
		closed = true
	}

	ch := NewChannel("viewer-1", serverConn, ChannelOptions{
		QueueSize: 16, WriteTimeout: 100 * time.Millisecond, MaxWriteFailures: 2,
	}, onClose, zaptest.NewLogger(t).Sugar())

	// Kill the transport under the pump.
	clientConn.Close()
	serverConn.Close()

	for i := 0; i < 8; i++ {
		ch.Send(map[string]any{"seq": i})
	}

	if !waitFor(2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return closed
	}) {
		t.Fatal("Channel never closed after repeated write failures")
	}
}

func TestRegistry(t *testing.T) {
	serverConn, _ := newConnPair(t)
	reg := NewRegistry()
	ch := NewChannel("viewer-1", serverConn, testOptions(), nil, zaptest.NewLogger(t).Sugar())
	defer ch.Close()

	reg.Register(ch)
	if reg.Count() != 1 {
		t.Errorf("Expected 1 channel, got %d", reg.Count())
	}
	got, ok := reg.Get("viewer-1")
	if !ok || got.ID() != "viewer-1" {
		t.Errorf("Lookup failed: ok=%v", ok)
	}

	reg.Unregister("viewer-1")
	if _, ok := reg.Get("viewer-1"); ok {
		t.Error("Expected viewer-1 gone after Unregister")
	}
}
