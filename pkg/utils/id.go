package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateViewerID generates a unique viewer ID
func GenerateViewerID() string {
	return fmt.Sprintf("viewer_%s", uuid.NewString()[:8])
}

// GenerateRequestID generates a unique agent command request ID
func GenerateRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// GenerateRecordingFilename synthesizes a collision-free recording file name
// for a client+camera pair. The uuid suffix disambiguates starts that land
// on the same second.
func GenerateRecordingFilename(clientID string, cameraIndex int, at time.Time) string {
	return fmt.Sprintf("%s_cam%d_%s_%s.mp4",
		clientID,
		cameraIndex,
		at.Format("20060102_150405"),
		uuid.NewString()[:8],
	)
}
