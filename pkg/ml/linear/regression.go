package linear

import (
	"errors"
	"math"
)

var ErrSingular = errors.New("linear system is singular")

// RegressionMetrics are computed on the samples passed to EvaluateRegression.
type RegressionMetrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// TrainLeastSquares fits y = bias + w·x by solving the ridge-regularized
// normal equations. The bias is not penalized.
func TrainLeastSquares(samples [][]float64, targets []float64, ridge float64) (Weights, RegressionMetrics, error) {
	if len(samples) == 0 {
		return Weights{}, RegressionMetrics{}, nil
	}
	if ridge < 0 {
		ridge = 0
	}
	width := len(samples[0]) + 1

	// Augmented rows [1, x...].
	xtx := make([][]float64, width)
	for i := range xtx {
		xtx[i] = make([]float64, width)
	}
	xty := make([]float64, width)
	for i, s := range samples {
		row := append([]float64{1}, s...)
		for a := 0; a < width; a++ {
			xty[a] += row[a] * targets[i]
			for b := a; b < width; b++ {
				xtx[a][b] += row[a] * row[b]
			}
		}
	}
	for a := 0; a < width; a++ {
		for b := 0; b < a; b++ {
			xtx[a][b] = xtx[b][a]
		}
		if a > 0 {
			xtx[a][a] += ridge
		}
	}

	beta, err := solve(xtx, xty)
	if err != nil {
		return Weights{}, RegressionMetrics{}, err
	}
	w := Weights{Bias: beta[0], Coefficients: beta[1:]}
	return w, EvaluateRegression(w, samples, targets), nil
}

func PredictLinear(w Weights, sample []float64) float64 {
	return dot(w.Coefficients, sample) + w.Bias
}

func EvaluateRegression(w Weights, samples [][]float64, targets []float64) RegressionMetrics {
	if len(samples) == 0 {
		return RegressionMetrics{}
	}
	n := float64(len(samples))
	var mean float64
	for _, t := range targets {
		mean += t
	}
	mean /= n

	var sse, sae, sst float64
	for i, s := range samples {
		d := PredictLinear(w, s) - targets[i]
		sse += d * d
		sae += math.Abs(d)
		m := targets[i] - mean
		sst += m * m
	}
	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
	}
	return RegressionMetrics{RMSE: math.Sqrt(sse / n), MAE: sae / n, R2: r2}
}

// solve runs Gaussian elimination with partial pivoting on a copy of a.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range a {
		m[i] = append(append([]float64{}, a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, ErrSingular
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := m[r][n]
		for c := r + 1; c < n; c++ {
			sum -= m[r][c] * x[c]
		}
		x[r] = sum / m[r][r]
	}
	return x, nil
}
