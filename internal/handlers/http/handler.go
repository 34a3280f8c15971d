package http

import (
	"camrelay/internal/core/domain"
	"camrelay/internal/infrastructure/middleware"
	"camrelay/pkg/errors"
	"camrelay/pkg/validation"

	"github.com/gin-gonic/gin"
)

// currentUser reads the caller set by the auth middleware. Routes using it
// are always mounted behind middleware.AuthMiddleware.
func currentUser(c *gin.Context) (domain.UserID, bool) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("authentication required"))
	}
	return userID, ok
}

func cameraID(c *gin.Context) (domain.CameraID, bool) {
	id := c.Param("cameraId")
	if err := validation.ValidateCameraID(id); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return "", false
	}
	return domain.CameraID(id), true
}

func sessionRef(c *gin.Context) (domain.SessionRef, bool) {
	camera, ok := cameraID(c)
	if !ok {
		return domain.SessionRef{}, false
	}
	id := c.Param("sessionId")
	if err := validation.ValidateSessionID(id); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return domain.SessionRef{}, false
	}
	return domain.SessionRef{CameraID: camera, SessionID: domain.SessionID(id)}, true
}

// bind decodes the JSON body, reporting failures as invalid input.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format").WithContext("reason", err.Error()))
		return false
	}
	return true
}
