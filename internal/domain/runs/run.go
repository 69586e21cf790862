package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run lifecycle states.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Per-sample outcome states.
const (
	SampleStatusDone   = "done"
	SampleStatusFailed = "failed"
)

type EnsembleRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string         `gorm:"column:name;not null;index" json:"name"`
	Method     string         `gorm:"column:method;not null" json:"method"`
	Status     string         `gorm:"column:status;not null;index" json:"status"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Manifest   string         `gorm:"column:manifest" json:"manifest,omitempty"`
	Config     datatypes.JSON `gorm:"column:config;type:jsonb" json:"config"`
	Stats      datatypes.JSON `gorm:"column:stats;type:jsonb" json:"stats,omitempty"`
	StartedAt  *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (EnsembleRun) TableName() string { return "ensemble_run" }

// BeforeCreate assigns the primary key client-side; sqlite has no uuid default.
func (r *EnsembleRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type RunMember struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     uuid.UUID `gorm:"type:uuid;column:run_id;not null;index" json:"run_id"`
	Position  int       `gorm:"column:position;not null;default:0" json:"position"`
	MemberID  string    `gorm:"column:member_id;not null" json:"member_id"`
	Model     string    `gorm:"column:model;not null" json:"model"`
	Weight    float64   `gorm:"column:weight;not null;default:1" json:"weight"`
	ValScore  float64   `gorm:"column:val_score" json:"val_score,omitempty"`
	MeanDice  *float64  `gorm:"column:mean_dice" json:"mean_dice,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RunMember) TableName() string { return "run_member" }

func (m *RunMember) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type SampleResult struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID       uuid.UUID      `gorm:"type:uuid;column:run_id;not null;uniqueIndex:idx_sample_result_run_sample" json:"run_id"`
	SampleID    string         `gorm:"column:sample_id;not null;uniqueIndex:idx_sample_result_run_sample" json:"sample_id"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Dice        datatypes.JSON `gorm:"column:dice;type:jsonb" json:"dice,omitempty"`
	MeanDice    *float64       `gorm:"column:mean_dice" json:"mean_dice,omitempty"`
	OutputKey   string         `gorm:"column:output_key" json:"output_key,omitempty"`
	PreviewKey  string         `gorm:"column:preview_key" json:"preview_key,omitempty"`
	InferMillis int64          `gorm:"column:infer_millis;not null;default:0" json:"infer_millis"`
	TotalMillis int64          `gorm:"column:total_millis;not null;default:0" json:"total_millis"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (SampleResult) TableName() string { return "sample_result" }

func (s *SampleResult) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
