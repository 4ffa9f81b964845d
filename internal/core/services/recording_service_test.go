package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"camfleet/internal/core/domain"

	"go.uber.org/zap/zaptest"
)

func newTestRecording(t *testing.T, gw *fakeGateway) (*recordingService, *captureManager) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	reg := newTestRegistry(t, time.Minute)
	if err := reg.MarkOnline(ctx, "client-1", "10.0.0.5:52100"); err != nil {
		t.Fatalf("MarkOnline failed: %v", err)
	}

	gw.responses["camera_get_cameras"] = json.RawMessage(`{
		"cameras": [{"index": 0, "name": "Integrated Camera", "resolutions": [{"width": 1920, "height": 1080, "fps": [30]}]}]
	}`)
	catalog := NewCatalogService(gw, logger)
	if _, err := catalog.Discover(ctx, "client-1"); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	capture := NewCaptureManager(gw, logger)
	svc := NewRecordingService(gw, reg, catalog, capture, "recordings", &fakeMetrics{}, logger)
	return svc, capture
}

func TestRecordingService_Start(t *testing.T) {
	gw := newFakeGateway()
	svc, capture := newTestRecording(t, gw)
	ctx := context.Background()

	session, err := svc.Start(ctx, "client-1", 0, domain.RecordingOptions{
		Codec: domain.CodecH264, Width: 1280, Height: 720, Bitrate: "4M",
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if session.State != domain.RecordingActive {
		t.Errorf("Expected active session, got %s", session.State)
	}
	if !strings.Contains(session.OutputPath, "client-1") {
		t.Errorf("Expected output path under client dir, got %s", session.OutputPath)
	}

	call, ok := gw.lastCall("camera_start_recording")
	if !ok {
		t.Fatal("Expected camera_start_recording command")
	}
	if call.params["camera_index"] != 0 {
		t.Errorf("Unexpected camera_index: %v", call.params["camera_index"])
	}
	if call.params["codec_type"] != "h264" {
		t.Errorf("Unexpected codec_type: %v", call.params["codec_type"])
	}
	if call.params["width"] != 1280 || call.params["bitrate"] != "4M" {
		t.Errorf("Unexpected encode params: %v", call.params)
	}

	if capture.Refs("client-1", 0) != 1 {
		t.Errorf("Expected 1 capture ref, got %d", capture.Refs("client-1", 0))
	}
	if len(svc.Sessions("client-1")) != 1 {
		t.Error("Expected 1 active session")
	}
}

func TestRecordingService_Start_OfflineClient(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newTestRecording(t, gw)

	_, err := svc.Start(context.Background(), "unknown", 0, domain.RecordingOptions{})
	if !errors.Is(err, domain.ErrClientNotFound) {
		t.Errorf("Expected ErrClientNotFound, got: %v", err)
	}
}

func TestRecordingService_Start_UnknownCamera(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newTestRecording(t, gw)

	_, err := svc.Start(context.Background(), "client-1", 7, domain.RecordingOptions{})
	if !errors.Is(err, domain.ErrInvalidParameters) {
		t.Errorf("Expected ErrInvalidParameters, got: %v", err)
	}
}

func TestRecordingService_Start_AlreadyRecording(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newTestRecording(t, gw)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "client-1", 0, domain.RecordingOptions{}); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	_, err := svc.Start(ctx, "client-1", 0, domain.RecordingOptions{})
	if !errors.Is(err, domain.ErrAlreadyRecording) {
		t.Errorf("Expected ErrAlreadyRecording, got: %v", err)
	}
}

func TestRecordingService_Start_BackendFailureReleasesCapture(t *testing.T) {
	gw := newFakeGateway()
	svc, capture := newTestRecording(t, gw)
	gw.errors["camera_start_recording"] = domain.NewDeviceError("encoder init failed")

	_, err := svc.Start(context.Background(), "client-1", 0, domain.RecordingOptions{})
	if !domain.IsDeviceError(err) {
		t.Fatalf("Expected device error, got: %v", err)
	}
	if capture.Refs("client-1", 0) != 0 {
		t.Errorf("Expected capture ref released, got %d", capture.Refs("client-1", 0))
	}
	if len(svc.Sessions("client-1")) != 0 {
		t.Error("Did not expect an active session")
	}
}

func TestRecordingService_Stop(t *testing.T) {
	gw := newFakeGateway()
	svc, capture := newTestRecording(t, gw)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "client-1", 0, domain.RecordingOptions{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Stop(ctx, "client-1", 0); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if gw.commandCount("camera_stop_recording") != 1 {
		t.Errorf("Expected 1 stop command, got %d", gw.commandCount("camera_stop_recording"))
	}
	if capture.Refs("client-1", 0) != 0 {
		t.Errorf("Expected capture ref released, got %d", capture.Refs("client-1", 0))
	}
	if len(svc.Sessions("client-1")) != 0 {
		t.Error("Expected no active sessions after stop")
	}
}

func TestRecordingService_Stop_IdleIsNoOp(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newTestRecording(t, gw)

	if err := svc.Stop(context.Background(), "client-1", 0); err != nil {
		t.Fatalf("Expected nil on idle stop, got: %v", err)
	}
	if gw.commandCount("camera_stop_recording") != 0 {
		t.Error("Did not expect a stop command for an idle camera")
	}
}

func TestRecordingService_Stop_BackendFailureStillClears(t *testing.T) {
	gw := newFakeGateway()
	svc, capture := newTestRecording(t, gw)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "client-1", 0, domain.RecordingOptions{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	gw.errors["camera_stop_recording"] = domain.NewDeviceError("muxer flush failed")

	err := svc.Stop(ctx, "client-1", 0)
	if !domain.IsDeviceError(err) {
		t.Fatalf("Expected device error, got: %v", err)
	}
	if len(svc.Sessions("client-1")) != 0 {
		t.Error("Expected session cleared despite backend failure")
	}
	if capture.Refs("client-1", 0) != 0 {
		t.Errorf("Expected capture ref released, got %d", capture.Refs("client-1", 0))
	}
}

func TestRecordingService_ReleaseClient(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newTestRecording(t, gw)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "client-1", 0, domain.RecordingOptions{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	svc.ReleaseClient("client-1")

	if len(svc.Sessions("client-1")) != 0 {
		t.Error("Expected no sessions after ReleaseClient")
	}
	if gw.commandCount("camera_stop_recording") != 0 {
		t.Error("Did not expect device commands during ReleaseClient")
	}
}
