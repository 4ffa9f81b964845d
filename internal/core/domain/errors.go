package domain

import (
	"errors"
	"fmt"
)

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrCameraNotFound    = errors.New("camera not found")
	ErrViewerNotFound    = errors.New("viewer not found")
	ErrAlreadyRecording  = errors.New("camera is already recording")
	ErrAlreadyActive     = errors.New("preview session already active")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrDeviceUnavailable = errors.New("no capture devices available")
	ErrUnreachable       = errors.New("client is offline")
)

// DeviceError carries a capture/encode failure message from the agent
// backend verbatim.
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s", e.Message)
}

// NewDeviceError wraps a backend failure message.
func NewDeviceError(message string) error {
	return &DeviceError{Message: message}
}

// IsDeviceError reports whether err is a backend capture/encode failure.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
