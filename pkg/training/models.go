package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/hospital-insights/pkg/ml/linear"
)

const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	ModelClassifier = "classifier"
	ModelRegressor  = "regressor"
)

// JobModel records one model fit attempt of a pipeline run.
type JobModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	RunID        string            `gorm:"column:run_id;index"`
	ModelType    string            `gorm:"column:model_type"`
	Status       string            `gorm:"column:status"`
	Rows         int               `gorm:"column:rows"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	ArtifactPath string            `gorm:"column:artifact_path"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
}

func (JobModel) TableName() string {
	return "training_jobs"
}

// ClassifierArtifact is the persisted readmission risk model. Serving
// rebuilds input vectors in FeatureNames order.
type ClassifierArtifact struct {
	RunID         string         `json:"run_id"`
	Algorithm     string         `json:"algorithm"`
	SchemaVersion int            `json:"schema_version"`
	FeatureNames  []string       `json:"feature_names"`
	Scaler        linear.Scaler  `json:"scaler"`
	Weights       linear.Weights `json:"weights"`
	Metrics       linear.Metrics `json:"metrics"`
	Rows          int            `json:"rows"`
	TrainedAt     time.Time      `json:"trained_at"`
}

// RegressorArtifact is the persisted wait-time model. Departments is the
// frozen one-hot vocabulary the weights were fit on.
type RegressorArtifact struct {
	RunID        string                   `json:"run_id"`
	Algorithm    string                   `json:"algorithm"`
	FeatureNames []string                 `json:"feature_names"`
	Departments  []string                 `json:"departments"`
	Scaler       linear.Scaler            `json:"scaler"`
	Weights      linear.Weights           `json:"weights"`
	Metrics      linear.RegressionMetrics `json:"metrics"`
	Rows         int                      `json:"rows"`
	TrainedAt    time.Time                `json:"trained_at"`
}

// Outcome is the result of one model fit.
type Outcome struct {
	Model        string                 `json:"model"`
	Status       string                 `json:"status"`
	Rows         int                    `json:"rows"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
}

type Result struct {
	Classifier Outcome `json:"classifier"`
	Regressor  Outcome `json:"regressor"`
}
