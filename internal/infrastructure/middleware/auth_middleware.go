package middleware

import (
	"context"
	"strings"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/services"
	"camrelay/pkg/errors"
	"camrelay/pkg/logger"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// bearerToken extracts the token from an Authorization header. Browsers
// cannot set headers on WebSocket upgrades, so the access_token query
// parameter is accepted as a fallback.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware requires a valid identity token and stores the caller on
// both the gin context and the request context.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, errors.NewUnauthorizedError("authorization header required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithError(c, errors.NewUnauthorizedError(err.Error()))
			return
		}

		c.Set(userIDKey, claims.UserID)
		ctx := services.WithUserID(c.Request.Context(), claims.UserID)
		ctx = logger.WithValue(ctx, logger.UserIDKey, string(claims.UserID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CurrentUser returns the caller set by AuthMiddleware.
func CurrentUser(c *gin.Context) (domain.UserID, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	userID, ok := v.(domain.UserID)
	return userID, ok && userID != ""
}

// CameraOwnerMiddleware only lets the registering user through.
func CameraOwnerMiddleware(authService services.AuthService) gin.HandlerFunc {
	return cameraCheck(authService.CheckCameraOwner)
}

// CameraAccessMiddleware lets the owner and actively linked monitors through.
func CameraAccessMiddleware(authService services.AuthService) gin.HandlerFunc {
	return cameraCheck(authService.CheckCameraAccess)
}

func cameraCheck(check func(ctx context.Context, userID domain.UserID, cameraID domain.CameraID) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUser(c)
		if !ok {
			abortWithError(c, errors.NewUnauthorizedError("authentication required"))
			return
		}

		cameraID := domain.CameraID(c.Param("cameraId"))
		if err := check(c.Request.Context(), userID, cameraID); err != nil {
			abortWithError(c, errors.FromDomain(err))
			return
		}

		c.Request = c.Request.WithContext(logger.WithValue(c.Request.Context(), logger.CameraIDKey, string(cameraID)))
		c.Next()
	}
}

// SessionAccessMiddleware admits the camera owner and the session's monitor.
func SessionAccessMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUser(c)
		if !ok {
			abortWithError(c, errors.NewUnauthorizedError("authentication required"))
			return
		}

		ref := domain.SessionRef{
			CameraID:  domain.CameraID(c.Param("cameraId")),
			SessionID: domain.SessionID(c.Param("sessionId")),
		}
		if err := authService.CheckSessionAccess(c.Request.Context(), userID, ref); err != nil {
			abortWithError(c, errors.FromDomain(err))
			return
		}
		c.Next()
	}
}
