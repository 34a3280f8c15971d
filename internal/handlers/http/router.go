package http

import (
	"net/http"
	"time"

	"camrelay/internal/core/ports"
	"camrelay/internal/core/services"
	"camrelay/internal/infrastructure/middleware"
	"camrelay/internal/infrastructure/monitoring"
	"camrelay/internal/infrastructure/signal"
	"camrelay/pkg/config"
	"camrelay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies is everything the router mounts.
type Dependencies struct {
	Config     *config.Config
	Pairing    ports.PairingService
	Sessions   ports.SessionService
	Candidates ports.CandidateService
	Presence   ports.PresenceService
	Accounts   ports.AccountService
	Auth       services.AuthService
	Feeds      *signal.WebSocketServer
	Health     *monitoring.HealthChecker
	// Metrics may be nil when Prometheus is disabled.
	Metrics *monitoring.PrometheusCollector
	Logger  *zap.Logger
}

// NewRouter builds the gin engine serving /api/v1, /ws and the operational
// endpoints.
func NewRouter(d Dependencies) *gin.Engine {
	sugar := d.Logger.Sugar()
	router := gin.New()

	var rec middleware.HTTPRecorder
	if d.Metrics != nil {
		rec = d.Metrics
	}
	router.Use(
		middleware.RecoveryMiddleware(sugar),
		middleware.RequestLoggingMiddleware(logger.NewContextLogger(d.Logger), rec),
		middleware.TracingMiddleware(),
		middleware.CORSMiddleware(d.Config),
		middleware.NewHTTPRateLimitMiddleware(d.Config),
		middleware.ErrorHandlerMiddleware(sugar),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
	})
	router.GET("/ready", func(c *gin.Context) {
		status := d.Health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	if d.Metrics != nil && d.Config.Monitoring.PrometheusEnabled {
		path := d.Config.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(d.Metrics.Handler()))
	}

	auth := middleware.AuthMiddleware(d.Auth)
	owner := middleware.CameraOwnerMiddleware(d.Auth)
	access := middleware.CameraAccessMiddleware(d.Auth)
	sessionAccess := middleware.SessionAccessMiddleware(d.Auth)

	if d.Feeds != nil {
		router.GET("/ws", auth, d.Feeds.HandleWebSocket)
	}

	cameras := NewCameraHandler(d.Presence)
	pairings := NewPairingHandler(d.Pairing, sugar)
	sessions := NewSessionHandler(d.Sessions, d.Candidates)
	accounts := NewAccountHandler(d.Accounts, sugar)

	api := router.Group("/api/v1", auth)
	{
		api.POST("/cameras", cameras.Register)
		api.GET("/cameras/:cameraId", access, cameras.Get)
		api.PUT("/cameras/:cameraId/presence", owner, cameras.SetPresence)
		api.POST("/cameras/:cameraId/heartbeat", owner, cameras.Heartbeat)
		api.PUT("/cameras/:cameraId/battery", owner, cameras.UpdateBattery)
		api.PUT("/cameras/:cameraId/name", owner, cameras.Rename)
		api.PUT("/cameras/:cameraId/push-token", owner, cameras.SetPushToken)
		api.PUT("/cameras/:cameraId/monitors", owner, cameras.SetConnectedMonitors)
		api.POST("/cameras/:cameraId/pairing-code", owner, cameras.RegeneratePairingCode)

		api.POST("/pairings", pairings.Pair)
		api.GET("/pairings", pairings.List)
		api.DELETE("/pairings/:cameraId", pairings.Unpair)

		api.POST("/cameras/:cameraId/sessions", access, sessions.Create)
		api.GET("/cameras/:cameraId/sessions/:sessionId", sessionAccess, sessions.Get)
		api.PUT("/cameras/:cameraId/sessions/:sessionId/answer", owner, sessions.SetAnswer)
		api.PUT("/cameras/:cameraId/sessions/:sessionId/status", sessionAccess, sessions.SetStatus)
		api.PUT("/cameras/:cameraId/sessions/:sessionId/audio", sessionAccess, sessions.SetAudio)
		api.POST("/cameras/:cameraId/sessions/:sessionId/heartbeat", sessionAccess, sessions.Heartbeat)
		api.DELETE("/cameras/:cameraId/sessions/:sessionId", sessionAccess, sessions.Delete)
		api.POST("/cameras/:cameraId/sessions/:sessionId/candidates", sessionAccess, sessions.AddCandidate)
		api.GET("/cameras/:cameraId/sessions/:sessionId/candidates", sessionAccess, sessions.ListCandidates)

		api.DELETE("/account", accounts.Delete)
	}

	return router
}
