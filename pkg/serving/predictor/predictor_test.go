package predictor

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
	"github.com/synaptica-ai/hospital-insights/pkg/ml/linear"
	"github.com/synaptica-ai/hospital-insights/pkg/training"
)

func identityScaler(width int) linear.Scaler {
	s := linear.Scaler{Mean: make([]float64, width), Scale: make([]float64, width)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

func writeArtifact(t *testing.T, dir, model string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(training.LatestArtifact(dir, model), data, 0o644))
}

func newTestPredictor(t *testing.T) *Predictor {
	dir := t.TempDir()
	names := features.ClassificationFeatureNames
	coeffs := make([]float64, len(names))
	coeffs[7] = 10 // admission_rate
	writeArtifact(t, dir, training.ModelClassifier, training.ClassifierArtifact{
		SchemaVersion: features.ClassificationSchemaVersion,
		FeatureNames:  names,
		Scaler:        identityScaler(len(names)),
		Weights:       linear.Weights{Bias: -3, Coefficients: coeffs},
	})

	vocab := features.Vocabulary{"Cardiology", "Emergency"}
	writeArtifact(t, dir, training.ModelRegressor, training.RegressorArtifact{
		FeatureNames: vocab.FeatureNames(),
		Departments:  vocab,
		Scaler:       identityScaler(len(vocab.FeatureNames())),
		Weights:      linear.Weights{Bias: 10, Coefficients: []float64{2, -50, 0, 30, 0, 0}},
	})
	return NewPredictor(dir)
}

func TestPredictRisk(t *testing.T) {
	p := newTestPredictor(t)

	low, err := p.PredictRisk(map[string]float64{"admission_rate": 0})
	require.NoError(t, err)
	assert.Equal(t, "Low", low.RiskLevel)
	assert.Equal(t, "Low Risk", low.RiskClass)

	high, err := p.PredictRisk(map[string]float64{"admission_rate": 0.5, "age": 80})
	require.NoError(t, err)
	assert.Equal(t, "Very High", high.RiskLevel)
	assert.Equal(t, "High Risk", high.RiskClass)
	assert.LessOrEqual(t, high.Probability, 1.0)
}

func TestPredictRiskMissingFeaturesDefaultToZero(t *testing.T) {
	p := newTestPredictor(t)

	empty, err := p.PredictRisk(map[string]float64{})
	require.NoError(t, err)
	explicit, err := p.PredictRisk(map[string]float64{"admission_rate": 0, "bmi": 0})
	require.NoError(t, err)
	assert.Equal(t, explicit, empty)
}

func TestPredictRiskRejectsUnknownFeature(t *testing.T) {
	p := newTestPredictor(t)

	_, err := p.PredictRisk(map[string]float64{"shoe_size": 42})
	assert.ErrorIs(t, err, ErrUnknownFeature)
	assert.Contains(t, err.Error(), "shoe_size")
}

func TestPredictWaitTime(t *testing.T) {
	p := newTestPredictor(t)

	cardio, err := p.PredictWaitTime(10, 0, "Cardiology")
	require.NoError(t, err)
	assert.InDelta(t, 30, cardio.Minutes, 1e-9)
	assert.Equal(t, "30 minutes", cardio.Formatted)
	assert.True(t, cardio.KnownDepartment)

	emergency, err := p.PredictWaitTime(10, 0, "Emergency")
	require.NoError(t, err)
	assert.InDelta(t, 60, emergency.Minutes, 1e-9)
	assert.Equal(t, "1h 0m", emergency.Formatted)

	unseen, err := p.PredictWaitTime(5, 0, "Oncology")
	require.NoError(t, err)
	assert.InDelta(t, 20, unseen.Minutes, 1e-9)
	assert.False(t, unseen.KnownDepartment)

	clamped, err := p.PredictWaitTime(10, 6, "Cardiology")
	require.NoError(t, err)
	assert.Zero(t, clamped.Minutes)
}

func TestModelUnavailable(t *testing.T) {
	p := NewPredictor(t.TempDir())

	_, err := p.PredictRisk(map[string]float64{})
	assert.ErrorIs(t, err, ErrModelUnavailable)
	_, err = p.PredictWaitTime(9, 1, "Cardiology")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestRiskBuckets(t *testing.T) {
	assert.Equal(t, "Very High", RiskLevel(0.7))
	assert.Equal(t, "High", RiskLevel(0.5))
	assert.Equal(t, "Moderate", RiskLevel(0.3))
	assert.Equal(t, "Low", RiskLevel(0.29))
	assert.Equal(t, "High Risk", RiskClass(0.5))
}

func TestFormatWaitTime(t *testing.T) {
	assert.Equal(t, "45 minutes", FormatWaitTime(45.9))
	assert.Equal(t, "2h 5m", FormatWaitTime(125))
}
