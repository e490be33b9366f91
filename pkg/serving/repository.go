package serving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PredictionLog is the persistence model for serving analytics.
type PredictionLog struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	RequestID string            `gorm:"column:request_id"`
	PatientID string            `gorm:"column:patient_id;index"`
	ModelName string            `gorm:"column:model_name"`
	Request   datatypes.JSONMap `gorm:"column:request"`
	Response  datatypes.JSONMap `gorm:"column:response"`
	LatencyMs float64           `gorm:"column:latency_ms"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// PredictionRecorder stores served predictions. *Repository implements it.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, log PredictionLog) error
}

// Repository handles prediction logs queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

func (r *Repository) RecordPrediction(ctx context.Context, log PredictionLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(&log).Error
}
