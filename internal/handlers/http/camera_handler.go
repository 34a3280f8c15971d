package http

import (
	"net/http"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// CameraHandler exposes the camera presence tracker.
type CameraHandler struct {
	presence ports.PresenceService
}

func NewCameraHandler(presence ports.PresenceService) *CameraHandler {
	return &CameraHandler{presence: presence}
}

func (h *CameraHandler) Register(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	var req domain.DeviceInfo
	if !bind(c, &req) {
		return
	}

	camera, err := h.presence.Register(c.Request.Context(), owner, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"camera": camera})
}

// Get returns the presence record. The pairing code is only shown to the owner.
func (h *CameraHandler) Get(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	camera, err := h.presence.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	reachable, err := h.presence.IsReachable(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if camera.OwnerUserID != userID {
		camera.PairingCode = ""
		camera.PushToken = ""
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera, "reachable": reachable})
}

func (h *CameraHandler) SetPresence(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var req struct {
		Online *bool `json:"online" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.presence.SetOnline(c.Request.Context(), id, *req.Online); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) Heartbeat(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if err := h.presence.Touch(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) UpdateBattery(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var req struct {
		Level *int `json:"level" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.presence.UpdateBattery(c.Request.Context(), id, *req.Level); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) Rename(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required,max=100"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.presence.Rename(c.Request.Context(), id, req.Name); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) SetPushToken(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token" binding:"max=4096"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.presence.SetPushToken(c.Request.Context(), id, req.Token); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) SetConnectedMonitors(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var req struct {
		Count *int `json:"count" binding:"required,min=0"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.presence.SetConnectedMonitors(c.Request.Context(), id, *req.Count); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) RegeneratePairingCode(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	code, err := h.presence.RegeneratePairingCode(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairingCode": code})
}
