package normalizer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
)

// WarningModel is one repaired value, kept for audit next to its pipeline run.
type WarningModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	RunID     string    `gorm:"column:run_id;index"`
	Entity    string    `gorm:"column:entity"`
	Column    string    `gorm:"column:column_name"`
	Row       int       `gorm:"column:row_index"`
	Value     string    `gorm:"column:value"`
	Action    string    `gorm:"column:action"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (WarningModel) TableName() string {
	return "data_quality_warnings"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&WarningModel{})
}

// SaveWarnings stores the warnings of one run in batches.
func (r *Repository) SaveWarnings(ctx context.Context, runID string, warnings []errs.DataQualityWarning) error {
	if len(warnings) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]WarningModel, len(warnings))
	for i, w := range warnings {
		rows[i] = WarningModel{
			ID:        uuid.New().String(),
			RunID:     runID,
			Entity:    w.Entity,
			Column:    w.Column,
			Row:       w.Row,
			Value:     w.Value,
			Action:    w.Action,
			CreatedAt: now,
		}
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 500).Error
}
