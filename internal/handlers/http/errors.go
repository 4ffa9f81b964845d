package http

import (
	stderrors "errors"

	"camfleet/internal/core/domain"
	"camfleet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// abortWithError translates domain errors into the structured responses the
// error handler middleware renders. Device errors keep the agent's message
// verbatim so operators see the real capture/encode failure.
func abortWithError(c *gin.Context, err error) {
	var deviceErr *domain.DeviceError
	if stderrors.As(err, &deviceErr) {
		c.Error(errors.NewDeviceErrorError(deviceErr.Message))
		return
	}

	switch {
	case stderrors.Is(err, domain.ErrClientNotFound):
		c.Error(errors.NewNotFoundError("client"))
	case stderrors.Is(err, domain.ErrCameraNotFound):
		c.Error(errors.NewNotFoundError("camera"))
	case stderrors.Is(err, domain.ErrViewerNotFound):
		c.Error(errors.NewNotFoundError("viewer"))
	case stderrors.Is(err, domain.ErrAlreadyRecording):
		c.Error(errors.NewAlreadyRecordingError(err.Error()))
	case stderrors.Is(err, domain.ErrAlreadyActive):
		c.Error(errors.NewAlreadyActiveError(err.Error()))
	case stderrors.Is(err, domain.ErrInvalidParameters):
		c.Error(errors.NewInvalidParametersError(err.Error()))
	case stderrors.Is(err, domain.ErrDeviceUnavailable):
		c.Error(errors.NewDeviceUnavailableError(err.Error()))
	case stderrors.Is(err, domain.ErrUnreachable):
		c.Error(errors.NewUnreachableError(err.Error()))
	default:
		c.Error(errors.NewInternalError(err.Error()))
	}
}
