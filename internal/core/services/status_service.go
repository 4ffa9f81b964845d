package services

import (
	"context"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
)

// statusService joins the camera catalog with live recording and preview
// state into a single per-client snapshot. It never talks to the agent:
// everything is answered from controller-side state.
type statusService struct {
	registry  ports.RegistryService
	catalog   ports.CatalogService
	recording ports.RecordingService
	preview   ports.PreviewService
}

func NewStatusService(
	registry ports.RegistryService,
	catalog ports.CatalogService,
	recording ports.RecordingService,
	preview ports.PreviewService,
) *statusService {
	return &statusService{
		registry:  registry,
		catalog:   catalog,
		recording: recording,
		preview:   preview,
	}
}

func (s *statusService) Snapshot(ctx context.Context, clientID domain.ClientID) (map[int]domain.CameraStatus, error) {
	if _, err := s.registry.Get(ctx, clientID); err != nil {
		return nil, err
	}

	cameras := s.catalog.Snapshot(clientID)
	sessions := s.recording.Sessions(clientID)
	viewers := s.preview.ActiveViewers(clientID)

	statuses := make(map[int]domain.CameraStatus, len(cameras))
	for _, cam := range cameras {
		status := domain.CameraStatus{
			CameraName:  cam.Name,
			IsStreaming: viewers[cam.Index] > 0,
		}
		if session, ok := sessions[cam.Index]; ok {
			status.IsRecording = true
			status.CurrentRecording = session.OutputPath
			status.Encoder = session.Encoder
			if session.Width > 0 {
				status.Resolution = domain.FormatResolution(session.Width, session.Height)
			}
		}
		statuses[cam.Index] = status
	}
	return statuses, nil
}
