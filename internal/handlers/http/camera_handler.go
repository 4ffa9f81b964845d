package http

import (
	"net/http"
	"strconv"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
	"camfleet/pkg/errors"
	"camfleet/pkg/validation"

	"github.com/gin-gonic/gin"
)

// ViewerLocator resolves a viewer_id from a request body to the viewer's
// live transport channel.
type ViewerLocator interface {
	Get(id domain.ViewerID) (ports.ViewerChannel, bool)
}

type CameraHandler struct {
	catalog   ports.CatalogService
	recording ports.RecordingService
	preview   ports.PreviewService
	status    ports.StatusService
	viewers   ViewerLocator
}

func NewCameraHandler(
	catalog ports.CatalogService,
	recording ports.RecordingService,
	preview ports.PreviewService,
	status ports.StatusService,
	viewers ViewerLocator,
) *CameraHandler {
	return &CameraHandler{
		catalog:   catalog,
		recording: recording,
		preview:   preview,
		status:    status,
		viewers:   viewers,
	}
}

func (h *CameraHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/clients/:id/cameras/initialize", h.Initialize)
	api.GET("/clients/:id/cameras", h.ListCameras)
	api.GET("/clients/:id/encoders", h.ListEncoders)
	api.GET("/clients/:id/status", h.Status)

	api.POST("/clients/:id/cameras/:index/recording/start", h.StartRecording)
	api.POST("/clients/:id/cameras/:index/recording/stop", h.StopRecording)
	api.GET("/clients/:id/recordings", h.ListRecordings)

	api.POST("/clients/:id/cameras/:index/preview/start", h.StartPreview)
	api.POST("/clients/:id/cameras/:index/preview/stop", h.StopPreview)
}

func (h *CameraHandler) cameraIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.Error(errors.NewInvalidParametersError("camera index must be an integer"))
		return 0, false
	}
	if err := validation.ValidateCameraIndex(index); err != nil {
		c.Error(errors.NewInvalidParametersError(err.Error()))
		return 0, false
	}
	return index, true
}

func (h *CameraHandler) Initialize(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	count, err := h.catalog.Initialize(c.Request.Context(), clientID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"camera_count": count,
	})
}

func (h *CameraHandler) ListCameras(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	cameras, err := h.catalog.Discover(c.Request.Context(), clientID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

func (h *CameraHandler) ListEncoders(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	catalog, err := h.catalog.Encoders(c.Request.Context(), clientID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"encoders": catalog,
	})
}

// Status reports per-camera state for one client. A camera_index query
// parameter narrows the snapshot to a single camera.
func (h *CameraHandler) Status(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	statuses, err := h.status.Snapshot(c.Request.Context(), clientID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if raw := c.Query("camera_index"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			c.Error(errors.NewInvalidParametersError("camera_index must be an integer"))
			return
		}
		status, ok := statuses[index]
		if !ok {
			abortWithError(c, domain.ErrCameraNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"camera_index": index,
			"status":       status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cameras": statuses,
	})
}

type StartRecordingRequest struct {
	CodecType string `json:"codec_type" binding:"omitempty,max=10"`
	Width     int    `json:"width" binding:"omitempty,min=0"`
	Height    int    `json:"height" binding:"omitempty,min=0"`
	Bitrate   string `json:"bitrate" binding:"omitempty,max=20"`
}

func (h *CameraHandler) StartRecording(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))
	index, ok := h.cameraIndex(c)
	if !ok {
		return
	}

	var req StartRecordingRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.CodecType != "" {
		if err := validation.ValidateCodecType(req.CodecType); err != nil {
			c.Error(errors.NewInvalidParametersError(err.Error()))
			return
		}
	}

	session, err := h.recording.Start(c.Request.Context(), clientID, index, domain.RecordingOptions{
		Codec:   domain.CodecFamily(req.CodecType),
		Width:   req.Width,
		Height:  req.Height,
		Bitrate: req.Bitrate,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

func (h *CameraHandler) StopRecording(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))
	index, ok := h.cameraIndex(c)
	if !ok {
		return
	}

	if err := h.recording.Stop(c.Request.Context(), clientID, index); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "stopped",
	})
}

func (h *CameraHandler) ListRecordings(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	sessions := h.recording.Sessions(clientID)

	c.JSON(http.StatusOK, gin.H{
		"recordings": sessions,
		"count":      len(sessions),
	})
}

type StartPreviewRequest struct {
	ViewerID string `json:"viewer_id" binding:"required,max=100"`
	FPS      int    `json:"fps" binding:"omitempty,min=0,max=60"`
}

func (h *CameraHandler) StartPreview(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))
	index, ok := h.cameraIndex(c)
	if !ok {
		return
	}

	var req StartPreviewRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, ok := h.viewers.Get(domain.ViewerID(req.ViewerID))
	if !ok {
		abortWithError(c, domain.ErrViewerNotFound)
		return
	}

	session, err := h.preview.Start(c.Request.Context(), clientID, index, channel, req.FPS)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

type StopPreviewRequest struct {
	ViewerID string `json:"viewer_id" binding:"required,max=100"`
}

func (h *CameraHandler) StopPreview(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))
	index, ok := h.cameraIndex(c)
	if !ok {
		return
	}

	var req StopPreviewRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.preview.Stop(c.Request.Context(), clientID, index, domain.ViewerID(req.ViewerID)); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "stopped",
	})
}
