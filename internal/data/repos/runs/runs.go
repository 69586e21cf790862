package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/segbridge/internal/domain"
	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type RunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.EnsembleRun) (*types.EnsembleRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (*types.EnsembleRun, error)
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.EnsembleRun, error)
	MarkRunning(ctx context.Context, tx *gorm.DB, runID uuid.UUID) error
	Finish(ctx context.Context, tx *gorm.DB, runID uuid.UUID, status, errMsg string, stats datatypes.JSON) error
	CreateMembers(ctx context.Context, tx *gorm.DB, members []*types.RunMember) ([]*types.RunMember, error)
	GetMembers(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.RunMember, error)
	UpdateMemberDice(ctx context.Context, tx *gorm.DB, memberRowID uuid.UUID, meanDice float64) error
}

type runRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return &runRepo{db: db, log: baseLog.With("repo", "RunRepo")}
}

func (r *runRepo) Create(ctx context.Context, tx *gorm.DB, run *types.EnsembleRun) (*types.EnsembleRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if run == nil {
		return nil, fmt.Errorf("nil run: %w", pkgerrors.ErrInvalidArgument)
	}

	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *runRepo) GetByID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (*types.EnsembleRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var run types.EnsembleRun
	if err := transaction.WithContext(ctx).
		Where("id = ?", runID).
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ensemble run %s: %w", runID, pkgerrors.ErrNotFound)
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.EnsembleRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var out []*types.EnsembleRun
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepo) MarkRunning(ctx context.Context, tx *gorm.DB, runID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.EnsembleRun{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":     types.RunStatusRunning,
			"started_at": &now,
		}).Error
}

func (r *runRepo) Finish(ctx context.Context, tx *gorm.DB, runID uuid.UUID, status, errMsg string, stats datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":      status,
		"error":       errMsg,
		"finished_at": &now,
	}
	if len(stats) > 0 {
		updates["stats"] = stats
	}
	return transaction.WithContext(ctx).
		Model(&types.EnsembleRun{}).
		Where("id = ?", runID).
		Updates(updates).Error
}

func (r *runRepo) CreateMembers(ctx context.Context, tx *gorm.DB, members []*types.RunMember) ([]*types.RunMember, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(members) == 0 {
		return []*types.RunMember{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// GetMembers returns the run's members in registry order. Position is
// load-bearing: mean weights are positional.
func (r *runRepo) GetMembers(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.RunMember, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var out []*types.RunMember
	if err := transaction.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepo) UpdateMemberDice(ctx context.Context, tx *gorm.DB, memberRowID uuid.UUID, meanDice float64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.RunMember{}).
		Where("id = ?", memberRowID).
		Updates(map[string]any{"mean_dice": meanDice}).Error
}
