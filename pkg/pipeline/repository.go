package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("pipeline run not found")

// RunModel is the persisted end-of-run status.
type RunModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Steps       string            `gorm:"column:steps"`
	Status      string            `gorm:"column:status"`
	Stage       string            `gorm:"column:stage"`
	Reason      string            `gorm:"column:reason"`
	Metrics     datatypes.JSONMap `gorm:"column:metrics"`
	StartedAt   time.Time         `gorm:"column:started_at"`
	CompletedAt time.Time         `gorm:"column:completed_at"`
}

func (RunModel) TableName() string {
	return "pipeline_runs"
}

// RunRecorder persists run outcomes. *Repository implements it.
type RunRecorder interface {
	Record(ctx context.Context, run *RunModel) error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RunModel{})
}

func (r *Repository) Record(ctx context.Context, run *RunModel) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*RunModel, error) {
	var run RunModel
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &run, result.Error
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunModel
	result := r.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&runs)
	return runs, result.Error
}
