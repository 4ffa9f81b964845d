package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_LevelGating(t *testing.T) {
	log := New("debug", "json")
	defer log.Sync()
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug enabled at debug level")
	}

	log = New("warn", "json")
	defer log.Sync()
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Expected info suppressed at warn level")
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := New("loud", "json")
	defer log.Sync()
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected fallback level info, debug enabled")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Expected fallback level info, info suppressed")
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		log := New("info", format)
		if log == nil {
			t.Fatalf("New returned nil for format %q", format)
		}
		log.Info("format smoke")
		log.Sync()
	}
}
