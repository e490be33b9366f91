package predictor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
	"github.com/synaptica-ai/hospital-insights/pkg/ml/linear"
	"github.com/synaptica-ai/hospital-insights/pkg/training"
)

var (
	ErrModelUnavailable = errors.New("model not available")
	ErrUnknownFeature   = errors.New("unknown feature")
)

const riskClassThreshold = 0.5

type RiskPrediction struct {
	Probability float64 `json:"risk_probability"`
	RiskClass   string  `json:"risk_class"`
	RiskLevel   string  `json:"risk_level"`
}

type WaitPrediction struct {
	Minutes         float64 `json:"predicted_wait_time_minutes"`
	Formatted       string  `json:"predicted_wait_time_formatted"`
	KnownDepartment bool    `json:"known_department"`
}

// Predictor serves the latest trained models from dir, reloading an
// artifact when its file changes.
type Predictor struct {
	dir        string
	mu         sync.RWMutex
	classifier *cachedClassifier
	regressor  *cachedRegressor
}

type cachedClassifier struct {
	artifact training.ClassifierArtifact
	modTime  int64
}

type cachedRegressor struct {
	artifact training.RegressorArtifact
	modTime  int64
}

func NewPredictor(dir string) *Predictor {
	return &Predictor{dir: dir}
}

// Reload drops cached artifacts so the next prediction reads from disk.
func (p *Predictor) Reload() {
	p.mu.Lock()
	p.classifier = nil
	p.regressor = nil
	p.mu.Unlock()
}

// PredictRisk scores named classification features. Missing names default
// to zero; names outside the model's feature list are rejected.
func (p *Predictor) PredictRisk(values map[string]float64) (RiskPrediction, error) {
	artifact, err := p.loadClassifier()
	if err != nil {
		return RiskPrediction{}, err
	}
	if artifact.SchemaVersion != features.ClassificationSchemaVersion {
		return RiskPrediction{}, fmt.Errorf("%w: classifier schema version %d, serving expects %d",
			ErrModelUnavailable, artifact.SchemaVersion, features.ClassificationSchemaVersion)
	}

	known := make(map[string]int, len(artifact.FeatureNames))
	for i, name := range artifact.FeatureNames {
		known[name] = i
	}
	var unknown []string
	sample := make([]float64, len(artifact.FeatureNames))
	for name, v := range values {
		idx, ok := known[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		sample[idx] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return RiskPrediction{}, fmt.Errorf("%w: %v", ErrUnknownFeature, unknown)
	}

	scaled, err := artifact.Scaler.Transform(sample)
	if err != nil {
		return RiskPrediction{}, err
	}
	prob := clamp(linear.Predict(artifact.Weights, scaled), 0, 1)
	return RiskPrediction{
		Probability: prob,
		RiskClass:   RiskClass(prob),
		RiskLevel:   RiskLevel(prob),
	}, nil
}

// PredictWaitTime estimates the wait for a visit at hour on weekday
// (Monday=0). Departments outside the trained vocabulary encode as all zeros.
func (p *Predictor) PredictWaitTime(hour, weekday int, department string) (WaitPrediction, error) {
	artifact, err := p.loadRegressor()
	if err != nil {
		return WaitPrediction{}, err
	}
	sample, known := features.RegressionVector(hour, weekday, department, features.Vocabulary(artifact.Departments))
	scaled, err := artifact.Scaler.Transform(sample)
	if err != nil {
		return WaitPrediction{}, err
	}
	minutes := math.Max(0, linear.PredictLinear(artifact.Weights, scaled))
	return WaitPrediction{
		Minutes:         minutes,
		Formatted:       FormatWaitTime(minutes),
		KnownDepartment: known,
	}, nil
}

// RiskLevel buckets a probability into Very High, High, Moderate or Low.
func RiskLevel(p float64) string {
	switch {
	case p >= 0.7:
		return "Very High"
	case p >= 0.5:
		return "High"
	case p >= 0.3:
		return "Moderate"
	default:
		return "Low"
	}
}

func RiskClass(p float64) string {
	if p >= riskClassThreshold {
		return "High Risk"
	}
	return "Low Risk"
}

func FormatWaitTime(minutes float64) string {
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", int(minutes))
	}
	return fmt.Sprintf("%dh %dm", int(minutes/60), int(math.Mod(minutes, 60)))
}

func (p *Predictor) loadClassifier() (training.ClassifierArtifact, error) {
	mod, err := p.modTime(training.ModelClassifier)
	if err != nil {
		return training.ClassifierArtifact{}, err
	}
	p.mu.RLock()
	cached := p.classifier
	p.mu.RUnlock()
	if cached != nil && cached.modTime == mod {
		return cached.artifact, nil
	}

	artifact, err := training.LoadClassifier(p.dir)
	if err != nil {
		return training.ClassifierArtifact{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	p.mu.Lock()
	p.classifier = &cachedClassifier{artifact: artifact, modTime: mod}
	p.mu.Unlock()
	return artifact, nil
}

func (p *Predictor) loadRegressor() (training.RegressorArtifact, error) {
	mod, err := p.modTime(training.ModelRegressor)
	if err != nil {
		return training.RegressorArtifact{}, err
	}
	p.mu.RLock()
	cached := p.regressor
	p.mu.RUnlock()
	if cached != nil && cached.modTime == mod {
		return cached.artifact, nil
	}

	artifact, err := training.LoadRegressor(p.dir)
	if err != nil {
		return training.RegressorArtifact{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	p.mu.Lock()
	p.regressor = &cachedRegressor{artifact: artifact, modTime: mod}
	p.mu.Unlock()
	return artifact, nil
}

func (p *Predictor) modTime(model string) (int64, error) {
	info, err := os.Stat(training.LatestArtifact(p.dir, model))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, model, err)
	}
	return info.ModTime().UnixNano(), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
