package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/segbridge/internal/db"
	"github.com/yungbote/segbridge/internal/http/response"
	"github.com/yungbote/segbridge/internal/observability"
)

type HealthHandler struct {
	dbs *db.Service
}

func NewHealthHandler(dbs *db.Service) *HealthHandler {
	return &HealthHandler{dbs: dbs}
}

// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /readyz
func (h *HealthHandler) Readyz(c *gin.Context) {
	if h.dbs != nil {
		if err := h.dbs.Ping(c.Request.Context()); err != nil {
			response.RespondError(c, http.StatusServiceUnavailable, "database_unavailable", err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

// GET /metrics
func (h *HealthHandler) Metrics(c *gin.Context) {
	m := observability.Current()
	if m == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Content-Type", "text/plain; version=0.0.4")
	c.Status(http.StatusOK)
	_ = m.WritePrometheus(c.Writer)
}
