package http

import (
	"net/http"

	"camfleet/internal/core/domain"
	"camfleet/internal/core/ports"
	"camfleet/pkg/errors"
	"camfleet/pkg/validation"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	registry ports.RegistryService
	gateway  ports.CommandSender
}

func NewClientHandler(registry ports.RegistryService, gateway ports.CommandSender) *ClientHandler {
	return &ClientHandler{
		registry: registry,
		gateway:  gateway,
	}
}

func (h *ClientHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/clients", h.ListClients)
	api.GET("/clients/online", h.ListOnlineClients)
	api.GET("/clients/:id", h.GetClient)
	api.POST("/clients/:id/command", h.SendCommand)
}

func (h *ClientHandler) ListClients(c *gin.Context) {
	clients, err := h.registry.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"count":   len(clients),
	})
}

func (h *ClientHandler) ListOnlineClients(c *gin.Context) {
	clients, err := h.registry.ListOnline(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	ids := make([]domain.ClientID, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": ids,
		"count":   len(ids),
	})
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))

	client, err := h.registry.Get(c.Request.Context(), clientID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client": client,
	})
}

type CommandRequest struct {
	Command string         `json:"command" binding:"required,max=100"`
	Params  map[string]any `json:"params"`
}

// SendCommand is the raw passthrough for commands without a dedicated
// endpoint. The payload goes to the agent as-is and the agent's response
// data comes back as-is.
func (h *ClientHandler) SendCommand(c *gin.Context) {
	clientID := domain.ClientID(c.Param("id"))
	if err := validation.ValidateClientID(string(clientID)); err != nil {
		c.Error(errors.NewInvalidParametersError(err.Error()))
		return
	}

	var req CommandRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.gateway.SendCommand(c.Request.Context(), clientID, req.Command, req.Params)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
