package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"camfleet/internal/core/domain"

	"go.uber.org/zap/zaptest"
)

func newTestAudio(t *testing.T, gw *fakeGateway, metrics *fakeMetrics) *audioService {
	t.Helper()
	reg := newTestRegistry(t, time.Minute)
	if err := reg.MarkOnline(context.Background(), "client-1", "10.0.0.5:52100"); err != nil {
		t.Fatalf("MarkOnline failed: %v", err)
	}
	return NewAudioService(gw, reg, metrics, zaptest.NewLogger(t).Sugar())
}

func TestAudioService_StartBothSkipsLiveSource(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestAudio(t, gw, &fakeMetrics{})
	ctx := context.Background()

	if err := svc.Start(ctx, "client-1", domain.MonitorMicrophone, nil); err != nil {
		t.Fatalf("Start microphone failed: %v", err)
	}
	if err := svc.Start(ctx, "client-1", domain.MonitorBoth, nil); err != nil {
		t.Fatalf("Start both failed: %v", err)
	}

	if gw.commandCount("audio_start_monitoring") != 2 {
		t.Errorf("Expected 2 start commands, got %d", gw.commandCount("audio_start_monitoring"))
	}
	call, _ := gw.lastCall("audio_start_monitoring")
	if call.params["source"] != "system" {
		t.Errorf("Expected second start to target system, got %v", call.params["source"])
	}

	active := svc.Active("client-1")
	if !active[domain.SourceMicrophone] || !active[domain.SourceSystem] {
		t.Errorf("Expected both sources active, got %v", active)
	}
}

func TestAudioService_Start_ConcurrentSameSourceCommandsOnce(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestAudio(t, gw, &fakeMetrics{})

	// Stall the agent round-trip so both starts would sit inside the
	// check-then-send window if it were not serialized.
	gw.onCommand = func(command string) {
		if command == "audio_start_monitoring" {
			time.Sleep(30 * time.Millisecond)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Start(context.Background(), "client-1", domain.MonitorMicrophone, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
	}
	if n := gw.commandCount("audio_start_monitoring"); n != 1 {
		t.Errorf("Expected exactly 1 start command for one source, got %d", n)
	}
	if !svc.Active("client-1")[domain.SourceMicrophone] {
		t.Error("Expected microphone active after concurrent starts")
	}
}

func TestAudioService_Start_InvalidMonitorType(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestAudio(t, gw, &fakeMetrics{})

	// "all" is a stop-only selector.
	err := svc.Start(context.Background(), "client-1", domain.MonitorAll, nil)
	if !errors.Is(err, domain.ErrInvalidParameters) {
		t.Errorf("Expected ErrInvalidParameters, got: %v", err)
	}
}

func TestAudioService_Stop_InvalidMonitorType(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestAudio(t, gw, &fakeMetrics{})

	// "both" is a start-only selector.
	err := svc.Stop(context.Background(), "client-1", domain.MonitorBoth)
	if !errors.Is(err, domain.ErrInvalidParameters) {
		t.Errorf("Expected ErrInvalidParameters, got: %v", err)
	}
}

func TestAudioService_HandleLevel(t *testing.T) {
	gw := newFakeGateway()
	metrics := &fakeMetrics{}
	svc := newTestAudio(t, gw, metrics)
	observer := newFakeViewerChannel("viewer-1")

	if err := svc.Start(context.Background(), "client-1", domain.MonitorMicrophone, observer); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	svc.HandleLevel("client-1", domain.AudioLevel{
		Source: domain.SourceMicrophone, RMS: 0.31, DB: -10.2, Peak: 0.52,
	})

	levels := svc.Levels("client-1")
	if levels[domain.SourceMicrophone].DB != -10.2 {
		t.Errorf("Unexpected microphone level: %+v", levels[domain.SourceMicrophone])
	}
	if levels[domain.SourceSystem].DB != domain.SilenceDB {
		t.Errorf("Expected system source at silence, got %+v", levels[domain.SourceSystem])
	}
	if levels[domain.SourceMicrophone].Timestamp.IsZero() {
		t.Error("Expected zero sample timestamp to be backfilled")
	}

	if observer.messageCount() != 1 {
		t.Fatalf("Expected 1 observer message, got %d", observer.messageCount())
	}
	msg := observer.lastMessage().(map[string]any)
	if msg["type"] != "audio_level" || msg["db"] != -10.2 {
		t.Errorf("Unexpected observer payload: %v", msg)
	}
}

func TestAudioService_HandleLevel_UnknownSourceDropped(t *testing.T) {
	gw := newFakeGateway()
	metrics := &fakeMetrics{}
	svc := newTestAudio(t, gw, metrics)

	if err := svc.Start(context.Background(), "client-1", domain.MonitorMicrophone, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	svc.HandleLevel("client-1", domain.AudioLevel{Source: "line-in", DB: -3})

	metrics.mu.Lock()
	unknown := metrics.unknownSources
	samples := metrics.audioSamples
	metrics.mu.Unlock()
	if unknown != 1 {
		t.Errorf("Expected 1 unknown-source drop, got %d", unknown)
	}
	if samples != 0 {
		t.Errorf("Did not expect a recorded sample, got %d", samples)
	}
}

func TestAudioService_HandleLevel_InactiveSourceIgnored(t *testing.T) {
	gw := newFakeGateway()
	metrics := &fakeMetrics{}
	svc := newTestAudio(t, gw, metrics)

	if err := svc.Start(context.Background(), "client-1", domain.MonitorMicrophone, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	svc.HandleLevel("client-1", domain.AudioLevel{Source: domain.SourceSystem, DB: -3})

	levels := svc.Levels("client-1")
	if levels[domain.SourceSystem].DB != domain.SilenceDB {
		t.Errorf("Expected system source untouched, got %+v", levels[domain.SourceSystem])
	}
}

func TestAudioService_StopAll(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestAudio(t, gw, &fakeMetrics{})
	ctx := context.Background()

	if err := svc.Start(ctx, "client-1", domain.MonitorBoth, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	svc.HandleLevel("client-1", domain.AudioLevel{Source: domain.SourceMicrophone, RMS: 0.5, DB: -6, Peak: 0.9})

	if err := svc.Stop(ctx, "client-1", domain.MonitorAll); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if gw.commandCount("audio_stop_monitoring") != 2 {
		t.Errorf("Expected 2 stop commands, got %d", gw.commandCount("audio_stop_monitoring"))
	}
	active := svc.Active("client-1")
	if active[domain.SourceMicrophone] || active[domain.SourceSystem] {
		t.Errorf("Expected no active sources, got %v", active)
	}
	levels := svc.Levels("client-1")
	if levels[domain.SourceMicrophone].DB != domain.SilenceDB {
		t.Errorf("Expected microphone reset to silence, got %+v", levels[domain.SourceMicrophone])
	}
}

func TestAudioService_Stop_BackendFailureStillClears(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestAudio(t, gw, &fakeMetrics{})
	ctx := context.Background()

	if err := svc.Start(ctx, "client-1", domain.MonitorMicrophone, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	gw.errors["audio_stop_monitoring"] = domain.NewDeviceError("pulse stream gone")

	err := svc.Stop(ctx, "client-1", domain.MonitorMicrophone)
	if !domain.IsDeviceError(err) {
		t.Fatalf("Expected device error, got: %v", err)
	}
	if svc.Active("client-1")[domain.SourceMicrophone] {
		t.Error("Expected microphone inactive despite backend failure")
	}
}

func TestAudioService_DetachObserver(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestAudio(t, gw, &fakeMetrics{})
	observer := newFakeViewerChannel("viewer-1")

	if err := svc.Start(context.Background(), "client-1", domain.MonitorMicrophone, observer); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	svc.DetachObserver("viewer-1")
	svc.HandleLevel("client-1", domain.AudioLevel{Source: domain.SourceMicrophone, DB: -6})

	if observer.messageCount() != 0 {
		t.Errorf("Detached observer received %d messages", observer.messageCount())
	}
	if !svc.Active("client-1")[domain.SourceMicrophone] {
		t.Error("Monitoring must survive observer detach")
	}
}
