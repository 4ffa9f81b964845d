package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// ClientIDRegex validates client ID format
	ClientIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ViewerIDRegex validates viewer ID format
	ViewerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// BitrateRegex validates bitrate strings like "5000k" or "10M"
	BitrateRegex = regexp.MustCompile(`^[0-9]+[kKmM]?$`)
)

// ValidateClientID validates a client identifier
func ValidateClientID(clientID string) error {
	if clientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if len(clientID) > 100 {
		return fmt.Errorf("client ID is too long (max 100 characters)")
	}
	if !ClientIDRegex.MatchString(clientID) {
		return fmt.Errorf("invalid client ID format")
	}
	return nil
}

// ValidateViewerID validates a viewer identifier
func ValidateViewerID(viewerID string) error {
	if viewerID == "" {
		return fmt.Errorf("viewer ID is required")
	}
	if len(viewerID) > 100 {
		return fmt.Errorf("viewer ID is too long (max 100 characters)")
	}
	if !ViewerIDRegex.MatchString(viewerID) {
		return fmt.Errorf("invalid viewer ID format")
	}
	return nil
}

// ValidateCameraIndex validates a camera index
func ValidateCameraIndex(index int) error {
	if index < 0 {
		return fmt.Errorf("camera index must be >= 0")
	}
	return nil
}

// ValidateFPS validates a preview frame rate
func ValidateFPS(fps int) error {
	if fps < 1 {
		return fmt.Errorf("fps must be >= 1")
	}
	if fps > 60 {
		return fmt.Errorf("fps is too high (max 60)")
	}
	return nil
}

// ValidateResolution validates an optional width/height pair. Both must be
// given together and both must be positive.
func ValidateResolution(width, height int) error {
	if width == 0 && height == 0 {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("width and height must both be positive")
	}
	if width > 7680 || height > 4320 {
		return fmt.Errorf("resolution exceeds 8K limit")
	}
	return nil
}

// ValidateBitrate validates an optional bitrate string
func ValidateBitrate(bitrate string) error {
	if bitrate == "" {
		return nil
	}
	if !BitrateRegex.MatchString(bitrate) {
		return fmt.Errorf("invalid bitrate format (expected digits with optional k/M suffix)")
	}
	return nil
}

// ValidateCodecType validates an optional codec family name
func ValidateCodecType(codec string) error {
	if codec == "" {
		return nil
	}
	switch strings.ToLower(codec) {
	case "h264", "h.264", "h265", "h.265", "hevc":
		return nil
	}
	return fmt.Errorf("unsupported codec type %q", codec)
}

// ValidateMonitorType validates an audio monitor type for start or stop calls
func ValidateMonitorType(monitorType string, forStop bool) error {
	switch monitorType {
	case "microphone", "system":
		return nil
	case "both":
		if forStop {
			return fmt.Errorf("monitor type 'both' is only valid for start")
		}
		return nil
	case "all":
		if !forStop {
			return fmt.Errorf("monitor type 'all' is only valid for stop")
		}
		return nil
	}
	return fmt.Errorf("unknown monitor type %q", monitorType)
}
