package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/db"
	segbridgehttp "github.com/yungbote/segbridge/internal/http"
	httpH "github.com/yungbote/segbridge/internal/http/handlers"
	httpMW "github.com/yungbote/segbridge/internal/http/middleware"
	"github.com/yungbote/segbridge/internal/members"
	"github.com/yungbote/segbridge/internal/observability"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/envutil"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Aggregate *httpH.AggregateHandler
	Members   *httpH.MembersHandler
	Runs      *httpH.RunsHandler
}

func wireMiddleware(log *logger.Logger) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, envutil.String("JWT_SECRET_KEY", "")),
	}
}

func wireHandlers(
	log *logger.Logger,
	cfg *config.Config,
	dbs *db.Service,
	registry *members.Registry,
	store artifacts.Store,
	repos Repos,
	svcs Services,
) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(dbs),
		Aggregate: httpH.NewAggregateHandler(cfg.HTTP.MaxRequestBytes),
		Members:   httpH.NewMembersHandler(registry),
		Runs:      httpH.NewRunsHandler(log, svcs.Evaluation, repos.Runs, repos.Results, store),
	}
}

func wireRouter(log *logger.Logger, metrics *observability.Metrics, h Handlers, mw Middleware) *gin.Engine {
	log.Info("Wiring router...")
	auth := mw.Auth
	if auth != nil && !auth.Enabled() {
		log.Warn("JWT_SECRET_KEY unset; run creation is unauthenticated")
	}
	return segbridgehttp.NewRouter(segbridgehttp.RouterConfig{
		Log:              log,
		AuthMiddleware:   auth,
		Metrics:          metrics,
		HealthHandler:    h.Health,
		AggregateHandler: h.Aggregate,
		MembersHandler:   h.Members,
		RunsHandler:      h.Runs,
	})
}
