package training

import (
	"context"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&JobModel{})
}

func (r *Repository) Create(ctx context.Context, job *JobModel) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) ListByRun(ctx context.Context, runID string) ([]JobModel, error) {
	var jobs []JobModel
	result := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("created_at asc").Find(&jobs)
	return jobs, result.Error
}
