package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/ml/linear"
)

const (
	MetricsFile = "metrics.json"

	holdoutEvery = 5
	ridgePenalty = 1e-3
)

// LatestArtifact is the file serving loads for model.
func LatestArtifact(dir, model string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_latest.json", model))
}

// JobRecorder persists training outcomes. *Repository implements it.
type JobRecorder interface {
	Create(ctx context.Context, job *JobModel) error
}

type Service struct {
	repo        JobRecorder
	artifactDir string
	opts        linear.Options
}

// NewService creates the artifact directory. repo may be nil.
func NewService(repo JobRecorder, artifactDir string, opts linear.Options) (*Service, error) {
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, err
	}
	opts.BalanceClasses = true
	return &Service{repo: repo, artifactDir: artifactDir, opts: opts}, nil
}

// Train fits both models. An empty set skips its model with an explicit
// status instead of failing.
func (s *Service) Train(ctx context.Context, runID string, cls features.ClassificationSet, reg features.RegressionSet) (Result, error) {
	var result Result
	var errList []error

	outcome, err := s.trainClassifier(runID, cls)
	result.Classifier = outcome
	if err != nil {
		errList = append(errList, err)
	}
	s.record(ctx, runID, outcome)

	outcome, err = s.trainRegressor(runID, reg)
	result.Regressor = outcome
	if err != nil {
		errList = append(errList, err)
	}
	s.record(ctx, runID, outcome)

	if err := writeJSON(filepath.Join(s.artifactDir, MetricsFile), result); err != nil {
		errList = append(errList, fmt.Errorf("write training metrics: %w", err))
	}
	return result, errors.Join(errList...)
}

func (s *Service) trainClassifier(runID string, set features.ClassificationSet) (Outcome, error) {
	outcome := Outcome{Model: ModelClassifier, Rows: len(set.Rows)}
	if len(set.Rows) == 0 {
		return skipped(outcome, "no patients with admissions"), nil
	}
	if set.SchemaVersion != features.ClassificationSchemaVersion {
		err := fmt.Errorf("classification schema version %d, expected %d", set.SchemaVersion, features.ClassificationSchemaVersion)
		return failed(outcome, err), err
	}

	x, y := set.Matrix()
	scaler := linear.FitScaler(x)
	scaled, err := scaler.TransformAll(x)
	if err != nil {
		return failed(outcome, err), err
	}
	trainX, trainY, testX, testY := holdout(scaled, y)
	weights, trainMetrics := linear.TrainLogistic(trainX, trainY, s.opts)
	testMetrics := linear.EvaluateLogistic(weights, testX, testY)

	artifact := ClassifierArtifact{
		RunID:         runID,
		Algorithm:     "logistic_regression",
		SchemaVersion: set.SchemaVersion,
		FeatureNames:  set.FeatureNames,
		Scaler:        scaler,
		Weights:       weights,
		Metrics:       testMetrics,
		Rows:          len(set.Rows),
		TrainedAt:     time.Now().UTC(),
	}
	path, err := s.publish(ModelClassifier, runID, artifact)
	if err != nil {
		return failed(outcome, err), err
	}

	outcome.Status = StatusCompleted
	outcome.ArtifactPath = path
	outcome.Metrics = map[string]interface{}{
		"train_accuracy": trainMetrics.Accuracy,
		"train_loss":     trainMetrics.Loss,
		"test_accuracy":  testMetrics.Accuracy,
		"test_loss":      testMetrics.Loss,
		"test_rows":      len(testX),
	}
	logger.Log.WithFields(map[string]interface{}{
		"run_id":   runID,
		"model":    ModelClassifier,
		"rows":     len(set.Rows),
		"accuracy": testMetrics.Accuracy,
	}).Info("Model trained")
	return outcome, nil
}

func (s *Service) trainRegressor(runID string, set features.RegressionSet) (Outcome, error) {
	outcome := Outcome{Model: ModelRegressor, Rows: len(set.Rows)}
	if len(set.Rows) == 0 {
		return skipped(outcome, "no visits"), nil
	}

	x, y := set.Matrix()
	scaler := linear.FitScaler(x)
	scaled, err := scaler.TransformAll(x)
	if err != nil {
		return failed(outcome, err), err
	}
	trainX, trainY, testX, testY := holdout(scaled, y)
	weights, trainMetrics, err := linear.TrainLeastSquares(trainX, trainY, ridgePenalty)
	if err != nil {
		return failed(outcome, err), err
	}
	testMetrics := linear.EvaluateRegression(weights, testX, testY)

	artifact := RegressorArtifact{
		RunID:        runID,
		Algorithm:    "ridge_least_squares",
		FeatureNames: set.FeatureNames,
		Departments:  set.Vocabulary,
		Scaler:       scaler,
		Weights:      weights,
		Metrics:      testMetrics,
		Rows:         len(set.Rows),
		TrainedAt:    time.Now().UTC(),
	}
	path, err := s.publish(ModelRegressor, runID, artifact)
	if err != nil {
		return failed(outcome, err), err
	}

	outcome.Status = StatusCompleted
	outcome.ArtifactPath = path
	outcome.Metrics = map[string]interface{}{
		"train_rmse": trainMetrics.RMSE,
		"test_rmse":  testMetrics.RMSE,
		"test_mae":   testMetrics.MAE,
		"test_r2":    testMetrics.R2,
		"test_rows":  len(testX),
	}
	logger.Log.WithFields(map[string]interface{}{
		"run_id": runID,
		"model":  ModelRegressor,
		"rows":   len(set.Rows),
		"rmse":   testMetrics.RMSE,
	}).Info("Model trained")
	return outcome, nil
}

// publish writes a run-scoped artifact and then replaces the latest one.
func (s *Service) publish(model, runID string, artifact interface{}) (string, error) {
	name := model + ".json"
	if runID != "" {
		name = fmt.Sprintf("%s_%s.json", model, runID)
	}
	if err := writeJSON(filepath.Join(s.artifactDir, name), artifact); err != nil {
		return "", fmt.Errorf("artifact write failed: %w", err)
	}
	latest := LatestArtifact(s.artifactDir, model)
	if err := writeJSON(latest, artifact); err != nil {
		return "", fmt.Errorf("artifact write failed: %w", err)
	}
	return latest, nil
}

func (s *Service) record(ctx context.Context, runID string, o Outcome) {
	if s.repo == nil {
		return
	}
	job := &JobModel{
		ID:           uuid.New(),
		RunID:        runID,
		ModelType:    o.Model,
		Status:       o.Status,
		Rows:         o.Rows,
		ArtifactPath: o.ArtifactPath,
		ErrorMessage: o.Reason,
		CreatedAt:    time.Now().UTC(),
	}
	if o.Metrics != nil {
		job.Metrics = datatypes.JSONMap(o.Metrics)
	}
	if err := s.repo.Create(ctx, job); err != nil {
		logger.Log.WithError(err).WithField("model", o.Model).Error("failed to record training job")
	}
}

// LoadClassifier reads the latest classifier artifact from dir.
func LoadClassifier(dir string) (ClassifierArtifact, error) {
	var a ClassifierArtifact
	err := readJSON(LatestArtifact(dir, ModelClassifier), &a)
	return a, err
}

// LoadRegressor reads the latest regressor artifact from dir.
func LoadRegressor(dir string) (RegressorArtifact, error) {
	var a RegressorArtifact
	err := readJSON(LatestArtifact(dir, ModelRegressor), &a)
	return a, err
}

// holdout sends every fifth row to the test split. Small sets are evaluated
// on the training rows.
func holdout(x [][]float64, y []float64) ([][]float64, []float64, [][]float64, []float64) {
	if len(x) < holdoutEvery {
		return x, y, x, y
	}
	var trainX, testX [][]float64
	var trainY, testY []float64
	for i := range x {
		if i%holdoutEvery == holdoutEvery-1 {
			testX = append(testX, x[i])
			testY = append(testY, y[i])
			continue
		}
		trainX = append(trainX, x[i])
		trainY = append(trainY, y[i])
	}
	return trainX, trainY, testX, testY
}

func skipped(o Outcome, reason string) Outcome {
	o.Status = StatusSkipped
	o.Reason = "insufficient data: " + reason
	logger.Log.WithFields(map[string]interface{}{
		"model":  o.Model,
		"reason": o.Reason,
	}).Warn("Model training skipped")
	return o
}

func failed(o Outcome, err error) Outcome {
	o.Status = StatusFailed
	o.Reason = err.Error()
	logger.Log.WithError(err).WithField("model", o.Model).Error("training job failed")
	return o
}

func writeJSON(path string, v interface{}) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
