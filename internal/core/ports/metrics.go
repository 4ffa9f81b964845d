package ports

import "time"

// MetricsRecorder is implemented by the monitoring collector. Services call
// it on hot paths, so implementations must be cheap and non-blocking.
type MetricsRecorder interface {
	RecordClientConnected()
	RecordClientDisconnected()
	RecordCommand(command string, duration time.Duration, success bool)
	RecordFrameRelayed(bytes int)
	RecordFrameDropped()
	RecordPreviewStarted()
	RecordPreviewStopped()
	RecordRecordingStarted()
	RecordRecordingStopped()
	RecordAudioSample()
	RecordUnknownAudioSource()
}
