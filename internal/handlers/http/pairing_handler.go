package http

import (
	"net/http"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/errors"
	"camrelay/pkg/utils"
	"camrelay/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PairingHandler links monitor users to cameras.
type PairingHandler struct {
	pairing ports.PairingService
	logger  *zap.SugaredLogger
}

func NewPairingHandler(pairing ports.PairingService, logger *zap.SugaredLogger) *PairingHandler {
	return &PairingHandler{pairing: pairing, logger: logger}
}

type PairRequest struct {
	CameraID    string `json:"cameraId" binding:"required"`
	PairingCode string `json:"pairingCode" binding:"required"`
	// CameraName overrides the camera's own device name on this link.
	CameraName string `json:"cameraName" binding:"max=100"`
}

// Pair verifies the code and records the link. The code is compared
// exactly, so it is not normalised here.
func (h *PairingHandler) Pair(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req PairRequest
	if !bind(c, &req) {
		return
	}
	if err := validation.ValidateCameraID(req.CameraID); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidatePairingCode(req.PairingCode); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	ctx := c.Request.Context()
	camera, err := h.pairing.Verify(ctx, domain.CameraID(req.CameraID), req.PairingCode)
	if err != nil {
		h.logger.Infow("pairing rejected",
			"user_id", userID,
			"camera_id", req.CameraID,
			"code", utils.MaskSensitive(req.PairingCode, 2),
		)
		_ = c.Error(err)
		return
	}

	name := utils.SanitizeString(req.CameraName)
	if name == "" {
		name = camera.DeviceName
	}
	link, err := h.pairing.CreateLink(ctx, userID, camera.ID, name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

func (h *PairingHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	links, err := h.pairing.GetPairedCameras(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links, "count": len(links)})
}

func (h *PairingHandler) Unpair(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if err := h.pairing.Deactivate(c.Request.Context(), userID, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
