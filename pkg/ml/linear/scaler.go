package linear

import (
	"fmt"
	"math"
)

// Scaler standardizes columns to zero mean and unit variance. Constant
// columns keep a scale of 1 so they map to zero.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func FitScaler(samples [][]float64) Scaler {
	if len(samples) == 0 {
		return Scaler{}
	}
	width := len(samples[0])
	mean := make([]float64, width)
	scale := make([]float64, width)
	n := float64(len(samples))

	for _, s := range samples {
		for j, v := range s {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, s := range samples {
		for j, v := range s {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return Scaler{Mean: mean, Scale: scale}
}

func (s Scaler) Width() int {
	return len(s.Mean)
}

func (s Scaler) Transform(sample []float64) ([]float64, error) {
	if len(sample) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(sample))
	}
	out := make([]float64, len(sample))
	for j, v := range sample {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

func (s Scaler) TransformAll(samples [][]float64) ([][]float64, error) {
	out := make([][]float64, len(samples))
	for i, sample := range samples {
		t, err := s.Transform(sample)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}
