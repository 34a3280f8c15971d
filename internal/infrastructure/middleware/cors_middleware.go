package middleware

import (
	"time"

	"camrelay/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the configured web origins. An empty list or "*"
// allows every origin without credentials.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	var origins []string
	for _, o := range cfg.Auth.AllowedOrigins {
		if o != "*" {
			origins = append(origins, o)
		}
	}
	allowAll := len(origins) < len(cfg.Auth.AllowedOrigins) || len(origins) == 0

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader, "Retry-After"},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}
	if allowAll {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}
