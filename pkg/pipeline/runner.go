package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/kafka"
	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
	"github.com/synaptica-ai/hospital-insights/pkg/ingestion"
	"github.com/synaptica-ai/hospital-insights/pkg/normalizer"
	"github.com/synaptica-ai/hospital-insights/pkg/observability/metrics"
	"github.com/synaptica-ai/hospital-insights/pkg/training"
	"github.com/synaptica-ai/hospital-insights/pkg/warehouse"
)

type Step string

const (
	StepClean     Step = "clean"
	StepWarehouse Step = "warehouse"
	StepFeatures  Step = "features"
	StepTrain     Step = "train"
)

// AllSteps is the full dependency-ordered pipeline.
var AllSteps = []Step{StepClean, StepWarehouse, StepFeatures, StepTrain}

const eventSource = "hospital-pipeline"

// Trainer fits models from feature sets. *training.Service implements it.
type Trainer interface {
	Train(ctx context.Context, runID string, cls features.ClassificationSet, reg features.RegressionSet) (training.Result, error)
}

// CleanedStore keeps the cleaned dataset between runs.
// *storage.ProcessedStore implements it.
type CleanedStore interface {
	StoreCleaned(patients []models.Patient, visits []models.Visit) error
	LoadCleaned() ([]models.Patient, []models.Visit, error)
}

// Deps wires the stages. Processed, Online, Trainer, Runs and Events are
// optional; a step that needs a missing dependency fails the run.
type Deps struct {
	Source     ingestion.Source
	Normalizer *normalizer.Service
	Processed  CleanedStore
	Warehouse  warehouse.Store
	FeatureDir string
	Features   features.Options
	Online     Materializer
	Trainer    Trainer
	Runs       RunRecorder
	Events     kafka.Publisher
}

// RunResult is the single end-of-run status.
type RunResult struct {
	RunID       string    `json:"run_id"`
	Steps       []Step    `json:"steps"`
	Status      string    `json:"status"`
	Stage       string    `json:"stage,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Patients           int               `json:"patients"`
	Visits             int               `json:"visits"`
	Warnings           int               `json:"warnings"`
	TableRows          map[string]int    `json:"table_rows,omitempty"`
	ClassificationRows int               `json:"classification_rows"`
	RegressionRows     int               `json:"regression_rows"`
	InsufficientData   []string          `json:"insufficient_data,omitempty"`
	Artifacts          map[string]string `json:"artifacts,omitempty"`
	OnlineFeatures     int               `json:"online_features"`
	Training           *training.Result  `json:"training,omitempty"`
}

// Metrics flattens the counters of r for persistence and events.
func (r RunResult) Metrics() map[string]interface{} {
	m := map[string]interface{}{
		"patients":            r.Patients,
		"visits":              r.Visits,
		"warnings":            r.Warnings,
		"classification_rows": r.ClassificationRows,
		"regression_rows":     r.RegressionRows,
		"online_features":     r.OnlineFeatures,
		"duration_ms":         r.CompletedAt.Sub(r.StartedAt).Milliseconds(),
	}
	for table, n := range r.TableRows {
		m["rows_"+table] = n
	}
	if len(r.InsufficientData) > 0 {
		m["insufficient_data"] = strings.Join(r.InsufficientData, "; ")
	}
	if r.Training != nil {
		m["classifier_status"] = r.Training.Classifier.Status
		m["regressor_status"] = r.Training.Regressor.Status
	}
	return m
}

type Runner struct {
	deps Deps
}

func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// runState carries stage outputs forward within one run.
type runState struct {
	patients    []models.Patient
	visits      []models.Visit
	artifacts   features.Artifacts
	hasFeatures bool
}

// Run executes steps in dependency order and records one final status. With
// no steps it runs AllSteps. Stages run strictly one after another.
func (r *Runner) Run(ctx context.Context, steps ...Step) (RunResult, error) {
	if len(steps) == 0 {
		steps = AllSteps
	}
	res := RunResult{
		RunID:     uuid.NewString(),
		Steps:     steps,
		StartedAt: time.Now().UTC(),
	}
	logger.Log.WithFields(map[string]interface{}{
		"run_id": res.RunID,
		"steps":  steps,
	}).Info("Pipeline run started")

	err := r.execute(ctx, &res, steps)
	r.finish(ctx, &res, err)
	return res, err
}

func (r *Runner) execute(ctx context.Context, res *RunResult, steps []Step) error {
	var st runState
	want := make(map[Step]bool, len(steps))
	for _, s := range steps {
		want[s] = true
	}

	switch {
	case want[StepClean]:
		if err := r.clean(ctx, res, &st); err != nil {
			return err
		}
	case want[StepWarehouse] || want[StepFeatures]:
		if err := r.stage(res, "load_processed", func() error { return r.loadProcessed(res, &st) }); err != nil {
			return err
		}
	}

	if want[StepWarehouse] {
		if err := r.stage(res, "warehouse", func() error { return r.buildWarehouse(ctx, res, &st) }); err != nil {
			return err
		}
	}
	if want[StepFeatures] {
		if err := r.stage(res, "features", func() error { return r.buildFeatures(ctx, res, &st) }); err != nil {
			return err
		}
		r.materialize(ctx, res, &st)
	}
	if want[StepTrain] {
		if err := r.stage(res, "train", func() error { return r.train(ctx, res, &st) }); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) clean(ctx context.Context, res *RunResult, st *runState) error {
	if r.deps.Source == nil || r.deps.Normalizer == nil {
		res.Stage = "load"
		return errors.New("clean step needs a source and a normalizer")
	}
	var rawPatients, rawVisits []models.RawRecord
	err := r.stage(res, "load", func() error {
		var err error
		if rawPatients, err = r.deps.Source.LoadPatients(ctx); err != nil {
			return err
		}
		rawVisits, err = r.deps.Source.LoadVisits(ctx)
		return err
	})
	if err != nil {
		return err
	}

	return r.stage(res, "clean", func() error {
		ds, err := r.deps.Normalizer.Process(ctx, res.RunID, rawPatients, rawVisits)
		if err != nil {
			return err
		}
		st.patients, st.visits = ds.Patients, ds.Visits
		res.Patients, res.Visits = len(ds.Patients), len(ds.Visits)
		for _, rep := range ds.Reports {
			res.Warnings += len(rep.Warnings)
			metrics.ObserveWarnings(rep.Entity, len(rep.Warnings))
		}
		if r.deps.Processed != nil {
			if err := r.deps.Processed.StoreCleaned(ds.Patients, ds.Visits); err != nil {
				return fmt.Errorf("store cleaned data: %w", err)
			}
		}
		return nil
	})
}

func (r *Runner) loadProcessed(res *RunResult, st *runState) error {
	if r.deps.Processed == nil {
		return errors.New("no processed data store configured")
	}
	patients, visits, err := r.deps.Processed.LoadCleaned()
	if err != nil {
		return err
	}
	st.patients, st.visits = patients, visits
	res.Patients, res.Visits = len(patients), len(visits)
	return nil
}

func (r *Runner) buildWarehouse(ctx context.Context, res *RunResult, st *runState) error {
	if r.deps.Warehouse == nil {
		return errors.New("no warehouse store configured")
	}
	w, err := warehouse.Build(st.patients, st.visits)
	if err != nil {
		return err
	}
	if err := r.deps.Warehouse.Replace(ctx, w); err != nil {
		return err
	}
	res.TableRows = w.RowCounts()
	metrics.ObserveTableRows(res.TableRows)
	return nil
}

func (r *Runner) buildFeatures(ctx context.Context, res *RunResult, st *runState) error {
	a, err := features.Build(st.patients, st.visits, r.deps.Features)
	if err != nil {
		if !errs.IsInsufficientData(err) {
			return err
		}
		res.InsufficientData = insufficientReasons(err)
		logger.Log.WithFields(map[string]interface{}{
			"run_id": res.RunID,
			"sets":   res.InsufficientData,
		}).Warn("Feature sets with insufficient data")
	}
	st.artifacts, st.hasFeatures = a, true
	res.ClassificationRows = len(a.Classification.Rows)
	res.RegressionRows = len(a.Regression.Rows)
	metrics.ObserveFeatureRows("classification", res.ClassificationRows)
	metrics.ObserveFeatureRows("regression", res.RegressionRows)

	if r.deps.FeatureDir == "" {
		return nil
	}
	paths, err := features.WriteArtifacts(ctx, r.deps.FeatureDir, a)
	if err != nil {
		return fmt.Errorf("write feature artifacts: %w", err)
	}
	res.Artifacts = paths
	return nil
}

// materialize refreshes the online store. Failures are logged only: serving
// falls back to the offline feature table.
func (r *Runner) materialize(ctx context.Context, res *RunResult, st *runState) {
	if r.deps.Online == nil || !st.hasFeatures {
		return
	}
	start := time.Now()
	// patients dropped from the batch must not keep serving stale rows
	if removed, err := r.deps.Online.Invalidate(ctx); err != nil {
		logger.Log.WithError(err).WithField("run_id", res.RunID).Warn("Online feature invalidation failed")
	} else if removed > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"run_id":  res.RunID,
			"removed": removed,
		}).Debug("Invalidated online features")
	}
	n, err := r.deps.Online.MaterializeHotFeatures(ctx, res.RunID, features.ClassificationSchemaVersion, OnlineRows(st.artifacts.Dataset))
	metrics.ObserveStage("materialize", time.Since(start))
	res.OnlineFeatures = n
	if err != nil {
		logger.Log.WithError(err).WithField("run_id", res.RunID).Warn("Online feature materialization failed")
	}
}

func (r *Runner) train(ctx context.Context, res *RunResult, st *runState) error {
	if r.deps.Trainer == nil {
		return errors.New("no trainer configured")
	}
	cls, reg := st.artifacts.Classification, st.artifacts.Regression
	if !st.hasFeatures {
		if r.deps.FeatureDir == "" {
			return errors.New("train step needs feature artifacts")
		}
		var err error
		if cls, err = features.ReadClassificationArtifact(filepath.Join(r.deps.FeatureDir, features.ClassificationFile)); err != nil {
			return err
		}
		if reg, err = features.ReadRegressionArtifact(r.deps.FeatureDir); err != nil {
			return err
		}
		res.ClassificationRows, res.RegressionRows = len(cls.Rows), len(reg.Rows)
	}
	result, err := r.deps.Trainer.Train(ctx, res.RunID, cls, reg)
	res.Training = &result
	return err
}

// stage times fn and tags res with the failing stage name.
func (r *Runner) stage(res *RunResult, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.ObserveStage(name, elapsed)

	entry := logger.Stage(res.RunID, name).WithField("duration_ms", elapsed.Milliseconds())
	if err != nil {
		res.Stage = name
		entry.WithError(err).Error("Pipeline stage failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	entry.Info("Pipeline stage completed")
	return nil
}

func (r *Runner) finish(ctx context.Context, res *RunResult, err error) {
	res.CompletedAt = time.Now().UTC()
	res.Status = models.RunStatusSucceeded
	eventType := models.EventPipelineCompleted
	if err != nil {
		res.Status = models.RunStatusFailed
		res.Reason = err.Error()
		eventType = models.EventPipelineFailed
	}
	metrics.ObserveRun(res.Status)

	fields := map[string]interface{}{
		"run_id":      res.RunID,
		"status":      res.Status,
		"duration_ms": res.CompletedAt.Sub(res.StartedAt).Milliseconds(),
	}
	if err != nil {
		logger.Log.WithFields(fields).WithField("stage", res.Stage).WithError(err).Error("Pipeline run failed")
	} else {
		logger.Log.WithFields(fields).Info("Pipeline run succeeded")
	}

	// Bookkeeping outlives a cancelled run context.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if r.deps.Runs != nil {
		steps := make([]string, len(res.Steps))
		for i, s := range res.Steps {
			steps[i] = string(s)
		}
		id, _ := uuid.Parse(res.RunID)
		run := &RunModel{
			ID:          id,
			Steps:       strings.Join(steps, ","),
			Status:      res.Status,
			Stage:       res.Stage,
			Reason:      res.Reason,
			Metrics:     datatypes.JSONMap(res.Metrics()),
			StartedAt:   res.StartedAt,
			CompletedAt: res.CompletedAt,
		}
		if recErr := r.deps.Runs.Record(bg, run); recErr != nil {
			logger.Log.WithError(recErr).WithField("run_id", res.RunID).Error("Failed to record pipeline run")
		}
	}

	if r.deps.Events != nil {
		data := res.Metrics()
		data["run_id"] = res.RunID
		data["status"] = res.Status
		if res.Reason != "" {
			data["reason"] = res.Reason
			data["stage"] = res.Stage
		}
		if pubErr := r.deps.Events.PublishEvent(bg, eventType, eventSource, data); pubErr != nil {
			logger.Log.WithError(pubErr).WithField("run_id", res.RunID).Error("Failed to publish run status")
		}
	}
}

func insufficientReasons(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if e != nil {
			out = append(out, e.Error())
		}
	}
	walk(err)
	return out
}
