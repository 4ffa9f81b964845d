package http

import (
	"net/http"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
	"camfleet/pkg/errors"
	"camfleet/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AudioHandler struct {
	audio   ports.AudioService
	viewers ViewerLocator
}

func NewAudioHandler(audio ports.AudioService, viewers ViewerLocator) *AudioHandler {
	return &AudioHandler{
		audio:   audio,
		viewers: viewers,
	}
}

func (h *AudioHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/clients/:id/audio/start", h.StartMonitoring)
	api.POST("/clients/:id/audio/stop", h.StopMonitoring)
	api.GET("/clients/:id/audio/levels", h.Levels)
}

type StartMonitoringRequest struct {
	MonitorType string `json:"monitor_type" binding:"required,max=20"`
	ViewerID    string `json:"viewer_id" binding:"omitempty,max=100"`
}

// StartMonitoring brings audio level monitoring up for the requested
// sources. A viewer_id subscribes that viewer's channel to the level feed;
// without one, levels are still tracked and readable via the levels
// endpoint.
func (h *AudioHandler) StartMonitoring(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	var req StartMonitoringRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateMonitorType(req.MonitorType, false); err != nil {
		c.Error(errors.NewInvalidParametersError(err.Error()))
		return
	}

	var observer ports.ViewerChannel
	if req.ViewerID != "" {
		channel, ok := h.viewers.Get(domain.ViewerID(req.ViewerID))
		if !ok {
			abortWithError(c, domain.ErrViewerNotFound)
			return
		}
		observer = channel
	}

	if err := h.audio.Start(c.Request.Context(), clientID, domain.MonitorType(req.MonitorType), observer); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "monitoring",
		"active": h.audio.Active(clientID),
	})
}

type StopMonitoringRequest struct {
	MonitorType string `json:"monitor_type" binding:"required,max=20"`
}

func (h *AudioHandler) StopMonitoring(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	var req StopMonitoringRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateMonitorType(req.MonitorType, true); err != nil {
		c.Error(errors.NewInvalidParametersError(err.Error()))
		return
	}

	if err := h.audio.Stop(c.Request.Context(), clientID, domain.MonitorType(req.MonitorType)); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "stopped",
		"active": h.audio.Active(clientID),
	})
}

func (h *AudioHandler) Levels(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	c.JSON(http.StatusOK, gin.H{
		"levels": h.audio.Levels(clientID),
		"active": h.audio.Active(clientID),
	})
}
