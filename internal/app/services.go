package app

import (
	"fmt"

	redisclient "github.com/yungbote/segbridge/internal/clients/redis"
	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/evaluation"
	"github.com/yungbote/segbridge/internal/members"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/logger"
	"github.com/yungbote/segbridge/internal/services"
)

type Services struct {
	Preview    services.PreviewService
	Evaluation evaluation.Service
}

func wireServices(
	log *logger.Logger,
	cfg *config.Config,
	registry *members.Registry,
	store artifacts.Store,
	repos Repos,
	bus redisclient.ProgressBus,
) (Services, error) {
	log.Info("Wiring services...")

	previewService, err := services.NewPreviewService(log, repos.Results, store)
	if err != nil {
		return Services{}, fmt.Errorf("init preview service: %w", err)
	}

	evalService, err := evaluation.NewService(log, cfg, registry, store, repos.Runs, repos.Results, previewService, bus)
	if err != nil {
		return Services{}, fmt.Errorf("init evaluation service: %w", err)
	}

	return Services{
		Preview:    previewService,
		Evaluation: evalService,
	}, nil
}
