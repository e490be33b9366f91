package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerStandardizes(t *testing.T) {
	samples := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	s := FitScaler(samples)

	assert.InDeltaSlice(t, []float64{3, 5}, s.Mean, 1e-9)
	assert.Equal(t, 1.0, s.Scale[1])

	out, err := s.Transform([]float64{3, 5})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0}, out, 1e-9)

	_, err = s.Transform([]float64{1})
	assert.Error(t, err)
}

func TestLogisticSeparatesClasses(t *testing.T) {
	samples := [][]float64{{-2}, {-1.5}, {-1}, {1}, {1.5}, {2}}
	labels := []float64{0, 0, 0, 1, 1, 1}

	w, m := TrainLogistic(samples, labels, Options{Epochs: 2000, LearningRate: 0.5, BalanceClasses: true})
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Greater(t, Predict(w, []float64{3}), 0.9)
	assert.Less(t, Predict(w, []float64{-3}), 0.1)
}

func TestLogisticEmptyInput(t *testing.T) {
	w, m := TrainLogistic(nil, nil, Options{})
	assert.Empty(t, w.Coefficients)
	assert.Zero(t, m.Accuracy)
}

func TestClassWeightsBalance(t *testing.T) {
	w := classWeights([]float64{1, 0, 0, 0}, true)
	assert.InDelta(t, 2.0, w[0], 1e-9)
	assert.InDelta(t, 4.0/6.0, w[1], 1e-9)

	assert.Equal(t, []float64{1, 1}, classWeights([]float64{1, 1}, true))
}

func TestLeastSquaresRecoversLine(t *testing.T) {
	samples := [][]float64{{0, 1}, {1, 0}, {2, 1}, {3, 0}, {4, 1}}
	targets := make([]float64, len(samples))
	for i, s := range samples {
		targets[i] = 10 + 3*s[0] - 2*s[1]
	}

	w, m, err := TrainLeastSquares(samples, targets, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10, w.Bias, 1e-6)
	assert.InDeltaSlice(t, []float64{3, -2}, w.Coefficients, 1e-6)
	assert.InDelta(t, 0, m.RMSE, 1e-6)
	assert.InDelta(t, 1, m.R2, 1e-6)
}

func TestLeastSquaresCollinearNeedsRidge(t *testing.T) {
	// Second column duplicates the first.
	samples := [][]float64{{1, 1}, {2, 2}, {3, 3}}
	targets := []float64{2, 4, 6}

	_, _, err := TrainLeastSquares(samples, targets, 0)
	assert.ErrorIs(t, err, ErrSingular)

	w, m, err := TrainLeastSquares(samples, targets, 1e-3)
	require.NoError(t, err)
	assert.InDelta(t, 8, PredictLinear(w, []float64{4, 4}), 1e-2)
	assert.Less(t, m.RMSE, 0.01)
}
