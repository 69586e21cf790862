package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/segbridge/internal/config"
)

// NewServer wraps the router in an http.Server carrying the configured
// timeouts. WriteTimeout stays 0: preview downloads and large aggregate
// responses should not race a fixed deadline.
func NewServer(cfg *config.Config, r *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
		WriteTimeout:      0,
	}
}
