package ports

import (
	"context"

	"camfleet/internal/core/domain"
)

type RegistryService interface {
	List(ctx context.Context) (map[domain.ClientID]*domain.Client, error)
	ListOnline(ctx context.Context) (map[domain.ClientID]*domain.Client, error)
	Get(ctx context.Context, id domain.ClientID) (*domain.Client, error)
	MarkOnline(ctx context.Context, id domain.ClientID, address string) error
	MarkOffline(ctx context.Context, id domain.ClientID) error
	Heartbeat(ctx context.Context, id domain.ClientID) error
	UpdateSettings(ctx context.Context, id domain.ClientID, settings map[string]string) error
}

type CatalogService interface {
	Initialize(ctx context.Context, clientID domain.ClientID) (int, error)
	Discover(ctx context.Context, clientID domain.ClientID) ([]domain.CameraDevice, error)
	Encoders(ctx context.Context, clientID domain.ClientID) (*domain.EncoderCatalog, error)

	// Snapshot reads never block on I/O.
	Snapshot(clientID domain.ClientID) []domain.CameraDevice
	Camera(clientID domain.ClientID, index int) (*domain.CameraDevice, bool)
	PreferredEncoder(clientID domain.ClientID, codec domain.CodecFamily) string
}

type RecordingService interface {
	Start(ctx context.Context, clientID domain.ClientID, cameraIndex int, opts domain.RecordingOptions) (*domain.RecordingSession, error)
	Stop(ctx context.Context, clientID domain.ClientID, cameraIndex int) error
	Sessions(clientID domain.ClientID) map[int]*domain.RecordingSession
	ReleaseClient(clientID domain.ClientID)
}

type PreviewService interface {
	Start(ctx context.Context, clientID domain.ClientID, cameraIndex int, viewer ViewerChannel, fps int) (*domain.PreviewSession, error)
	Stop(ctx context.Context, clientID domain.ClientID, cameraIndex int, viewerID domain.ViewerID) error
	ActiveViewers(clientID domain.ClientID) map[int]int
	DropViewer(viewerID domain.ViewerID)
	ReleaseClient(clientID domain.ClientID)
}

type StatusService interface {
	Snapshot(ctx context.Context, clientID domain.ClientID) (map[int]domain.CameraStatus, error)
}

type AudioService interface {
	Start(ctx context.Context, clientID domain.ClientID, monitorType domain.MonitorType, observer ViewerChannel) error
	Stop(ctx context.Context, clientID domain.ClientID, monitorType domain.MonitorType) error
	Levels(clientID domain.ClientID) map[domain.AudioSource]domain.AudioLevel
	Active(clientID domain.ClientID) map[domain.AudioSource]bool
	DetachObserver(viewerID domain.ViewerID)
	ReleaseClient(clientID domain.ClientID)
}

// CaptureManager reference-counts the per (client, camera) upstream capture
// resource shared by preview sessions and the recording session.
type CaptureManager interface {
	Acquire(ctx context.Context, clientID domain.ClientID, cameraIndex int) error
	Release(ctx context.Context, clientID domain.ClientID, cameraIndex int)
	Refs(clientID domain.ClientID, cameraIndex int) int
	ReleaseClient(clientID domain.ClientID)
}
