package validation

import (
	"strings"
	"testing"
)

func TestValidateClientID(t *testing.T) {
	valid := []string{"client-1", "workstation_42", "AB12"}
	for _, id := range valid {
		if err := ValidateClientID(id); err != nil {
			t.Errorf("ValidateClientID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "has space", "semi;colon", strings.Repeat("x", 101)}
	for _, id := range invalid {
		if err := ValidateClientID(id); err == nil {
			t.Errorf("ValidateClientID(%q) = nil, want error", id)
		}
	}
}

func TestValidateViewerID(t *testing.T) {
	if err := ValidateViewerID("viewer_ab12cd34"); err != nil {
		t.Errorf("Expected valid viewer id, got: %v", err)
	}
	if err := ValidateViewerID("../etc/passwd"); err == nil {
		t.Error("Expected error for path-like viewer id")
	}
}

func TestValidateCameraIndex(t *testing.T) {
	if err := ValidateCameraIndex(0); err != nil {
		t.Errorf("ValidateCameraIndex(0) = %v, want nil", err)
	}
	if err := ValidateCameraIndex(-1); err == nil {
		t.Error("ValidateCameraIndex(-1) = nil, want error")
	}
}

func TestValidateFPS(t *testing.T) {
	for _, fps := range []int{1, 30, 60} {
		if err := ValidateFPS(fps); err != nil {
			t.Errorf("ValidateFPS(%d) = %v, want nil", fps, err)
		}
	}
	for _, fps := range []int{0, -5, 61} {
		if err := ValidateFPS(fps); err == nil {
			t.Errorf("ValidateFPS(%d) = nil, want error", fps)
		}
	}
}

func TestValidateResolution(t *testing.T) {
	if err := ValidateResolution(0, 0); err != nil {
		t.Errorf("Expected unset resolution to pass, got: %v", err)
	}
	if err := ValidateResolution(1920, 1080); err != nil {
		t.Errorf("ValidateResolution(1920, 1080) = %v, want nil", err)
	}
	if err := ValidateResolution(1920, 0); err == nil {
		t.Error("Expected error for half-set resolution")
	}
	if err := ValidateResolution(10000, 10000); err == nil {
		t.Error("Expected error beyond 8K")
	}
}

func TestValidateBitrate(t *testing.T) {
	for _, br := range []string{"", "5000", "5000k", "10M"} {
		if err := ValidateBitrate(br); err != nil {
			t.Errorf("ValidateBitrate(%q) = %v, want nil", br, err)
		}
	}
	for _, br := range []string{"fast", "10Mbps", "-100k"} {
		if err := ValidateBitrate(br); err == nil {
			t.Errorf("ValidateBitrate(%q) = nil, want error", br)
		}
	}
}

func TestValidateCodecType(t *testing.T) {
	for _, codec := range []string{"", "h264", "H264", "h265", "hevc"} {
		if err := ValidateCodecType(codec); err != nil {
			t.Errorf("ValidateCodecType(%q) = %v, want nil", codec, err)
		}
	}
	if err := ValidateCodecType("av1"); err == nil {
		t.Error("ValidateCodecType(av1) = nil, want error")
	}
}

func TestValidateMonitorType(t *testing.T) {
	for _, mt := range []string{"microphone", "system"} {
		if err := ValidateMonitorType(mt, false); err != nil {
			t.Errorf("ValidateMonitorType(%q, start) = %v, want nil", mt, err)
		}
		if err := ValidateMonitorType(mt, true); err != nil {
			t.Errorf("ValidateMonitorType(%q, stop) = %v, want nil", mt, err)
		}
	}

	if err := ValidateMonitorType("both", false); err != nil {
		t.Errorf("ValidateMonitorType(both, start) = %v, want nil", err)
	}
	if err := ValidateMonitorType("both", true); err == nil {
		t.Error("ValidateMonitorType(both, stop) = nil, want error")
	}

	if err := ValidateMonitorType("all", true); err != nil {
		t.Errorf("ValidateMonitorType(all, stop) = %v, want nil", err)
	}
	if err := ValidateMonitorType("all", false); err == nil {
		t.Error("ValidateMonitorType(all, start) = nil, want error")
	}

	if err := ValidateMonitorType("line-in", false); err == nil {
		t.Error("ValidateMonitorType(line-in, start) = nil, want error")
	}
}
