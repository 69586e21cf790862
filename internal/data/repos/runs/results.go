package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/yungbote/segbridge/internal/domain"
	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type ResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, results []*types.SampleResult) ([]*types.SampleResult, error)
	GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.SampleResult, error)
	GetBySample(ctx context.Context, tx *gorm.DB, runID uuid.UUID, sampleID string) (*types.SampleResult, error)
	UpdatePreviewKey(ctx context.Context, tx *gorm.DB, resultID uuid.UUID, previewKey string) error
}

type resultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResultRepo(db *gorm.DB, baseLog *logger.Logger) ResultRepo {
	return &resultRepo{db: db, log: baseLog.With("repo", "ResultRepo")}
}

func (r *resultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.SampleResult) ([]*types.SampleResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(results) == 0 {
		return []*types.SampleResult{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&results).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sample result already recorded for this run: %w", pkgerrors.ErrConflict)
		}
		return nil, err
	}
	return results, nil
}

func (r *resultRepo) GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.SampleResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var out []*types.SampleResult
	if err := transaction.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("sample_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *resultRepo) GetBySample(ctx context.Context, tx *gorm.DB, runID uuid.UUID, sampleID string) (*types.SampleResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SampleResult
	if err := transaction.WithContext(ctx).
		Where("run_id = ? AND sample_id = ?", runID, sampleID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sample result %s/%s: %w", runID, sampleID, pkgerrors.ErrNotFound)
		}
		return nil, err
	}
	return &result, nil
}

func (r *resultRepo) UpdatePreviewKey(ctx context.Context, tx *gorm.DB, resultID uuid.UUID, previewKey string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.SampleResult{}).
		Where("id = ?", resultID).
		Updates(map[string]any{"preview_key": previewKey}).Error
}

// isUniqueViolation matches the (run_id, sample_id) constraint from either
// driver: pgconn exposes code 23505, sqlite only a message.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
