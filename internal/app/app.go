package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	redisclient "github.com/yungbote/segbridge/internal/clients/redis"
	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/db"
	segbridgehttp "github.com/yungbote/segbridge/internal/http"
	"github.com/yungbote/segbridge/internal/members"
	"github.com/yungbote/segbridge/internal/observability"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/envutil"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

// App wires the whole service: config, database, member registry,
// artifact store, evaluation services and the HTTP surface.
type App struct {
	Log      *logger.Logger
	Config   *config.Config
	DB       *db.Service
	Store    artifacts.Store
	Registry *members.Registry
	Repos    Repos
	Services Services
	Router   *gin.Engine

	bus          redisclient.ProgressBus
	metrics      *observability.Metrics
	server       *http.Server
	shutdownOTel func(context.Context) error
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = cfg.Env
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbs, err := db.New(cfg.Database, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	store, err := artifacts.New(cfg.Artifacts, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	registry, err := members.New(cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init member registry: %w", err)
	}

	metrics := observability.Init(log)

	var shutdownOTel func(context.Context) error
	if observability.OTelEnabled() {
		// Tracing must be live before the router captures the provider.
		shutdownOTel, err = observability.InitOTel(context.Background(), log)
		if err != nil {
			log.Warn("OTel init failed; tracing disabled", "error", err)
			shutdownOTel = nil
		}
	}

	bus, err := redisclient.NewProgressBus(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init progress bus: %w", err)
	}

	reposet := wireRepos(dbs.DB(), log)

	serviceset, err := wireServices(log, cfg, registry, store, reposet, bus)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, dbs, registry, store, reposet, serviceset)
	middleware := wireMiddleware(log)
	router := wireRouter(log, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		Config:       cfg,
		DB:           dbs,
		Store:        store,
		Registry:     registry,
		Repos:        reposet,
		Services:     serviceset,
		Router:       router,
		bus:          bus,
		metrics:      metrics,
		server:       segbridgehttp.NewServer(cfg, router),
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains within the
// configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	a.startCollectors(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "addr", a.Config.HTTP.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) startCollectors(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	a.metrics.StartPostgresCollector(ctx, a.Log, a.DB.DB())
	a.metrics.StartRunStatusCollector(ctx, a.Log, a.DB.DB())
	a.metrics.StartSLOEvaluator(ctx, a.Log)
	if addr := envutil.String("REDIS_ADDR", ""); addr != "" {
		a.metrics.StartRedisCollector(ctx, a.Log, addr)
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.Log.Warn("progress bus close failed", "error", err)
		}
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
