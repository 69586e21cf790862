package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/segbridge/internal/http/handlers"
	httpMW "github.com/yungbote/segbridge/internal/http/middleware"
	"github.com/yungbote/segbridge/internal/observability"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware
	Metrics        *observability.Metrics

	HealthHandler    *httpH.HealthHandler
	AggregateHandler *httpH.AggregateHandler
	MembersHandler   *httpH.MembersHandler
	RunsHandler      *httpH.RunsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if observability.OTelEnabled() {
		r.Use(otelgin.Middleware("segbridge"))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health + metrics
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Healthz)
		r.GET("/readyz", cfg.HealthHandler.Readyz)
		if observability.Enabled() {
			r.GET("/metrics", cfg.HealthHandler.Metrics)
		}
	}

	v1 := r.Group("/v1")
	{
		// Stateless aggregation
		if cfg.AggregateHandler != nil {
			v1.POST("/aggregate/mean", cfg.AggregateHandler.Mean)
			v1.POST("/aggregate/vote", cfg.AggregateHandler.Vote)
		}

		// Ensemble members
		if cfg.MembersHandler != nil {
			v1.GET("/members", cfg.MembersHandler.List)
		}

		// Evaluation runs
		if cfg.RunsHandler != nil {
			v1.GET("/runs", cfg.RunsHandler.List)
			v1.GET("/runs/:id", cfg.RunsHandler.Get)
			v1.GET("/runs/:id/results", cfg.RunsHandler.Results)
			v1.GET("/runs/:id/results/:sample/preview", cfg.RunsHandler.Preview)
			if cfg.AuthMiddleware != nil {
				v1.POST("/runs", cfg.AuthMiddleware.RequireAuth(), cfg.RunsHandler.Create)
			} else {
				v1.POST("/runs", cfg.RunsHandler.Create)
			}
		}
	}

	return r
}
