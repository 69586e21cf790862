package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/segbridge/internal/data/repos/runs"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type Repos struct {
	Runs    runs.RunRepo
	Results runs.ResultRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Runs:    runs.NewRunRepo(db, log),
		Results: runs.NewResultRepo(db, log),
	}
}
