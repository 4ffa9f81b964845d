package domain

import (
	"fmt"
	"time"
)

type RecordingState string

const (
	RecordingIdle   RecordingState = "idle"
	RecordingActive RecordingState = "recording"
)

// RecordingSession is the per (client, camera) recording record.
// OutputPath is set if and only if State == RecordingActive.
type RecordingSession struct {
	ClientID    ClientID       `json:"client_id"`
	CameraIndex int            `json:"camera_index"`
	Codec       CodecFamily    `json:"codec"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Bitrate     string         `json:"bitrate,omitempty"`
	Encoder     string         `json:"encoder,omitempty"`
	State       RecordingState `json:"state"`
	OutputPath  string         `json:"output_path,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
}

// RecordingOptions are the caller-supplied start parameters. Zero values
// mean "let the agent decide".
type RecordingOptions struct {
	Codec   CodecFamily
	Width   int
	Height  int
	Bitrate string
}

type PreviewState string

const (
	PreviewStarting PreviewState = "starting"
	PreviewActive   PreviewState = "active"
	PreviewStopped  PreviewState = "stopped"
)

// PreviewSession binds one viewer to one camera's live frame relay.
// The viewer's transport channel is open if and only if State == PreviewActive.
type PreviewSession struct {
	ClientID    ClientID     `json:"client_id"`
	CameraIndex int          `json:"camera_index"`
	ViewerID    ViewerID     `json:"viewer_id"`
	FPS         int          `json:"fps"`
	State       PreviewState `json:"state"`
	StartedAt   time.Time    `json:"started_at"`
}

// Frame is one encoded preview frame relayed from an agent.
type Frame struct {
	ClientID    ClientID
	CameraIndex int
	Payload     []byte
	Timestamp   time.Time
}

// CameraStatus is one row of the status aggregator's snapshot.
type CameraStatus struct {
	CameraName       string `json:"camera_name"`
	Encoder          string `json:"encoder"`
	Resolution       string `json:"resolution"`
	IsStreaming      bool   `json:"is_streaming"`
	IsRecording      bool   `json:"is_recording"`
	CurrentRecording string `json:"current_recording,omitempty"`
}

// FormatResolution renders the "WxH" form used in status snapshots.
func FormatResolution(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
