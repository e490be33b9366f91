package linear

import "math"

type Options struct {
	Epochs       int
	LearningRate float64
	// BalanceClasses weights each sample by the inverse frequency of its label.
	BalanceClasses bool
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Metrics struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

func TrainLogistic(samples [][]float64, labels []float64, opts Options) (Weights, Metrics) {
	if opts.Epochs <= 0 {
		opts.Epochs = 500
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.1
	}

	n := len(samples)
	if n == 0 {
		return Weights{}, Metrics{}
	}
	featureCount := len(samples[0])
	weights := make([]float64, featureCount)
	var bias float64
	sampleWeights := classWeights(labels, opts.BalanceClasses)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for i, sample := range samples {
			prediction := sigmoid(dot(weights, sample) + bias)
			residual := (prediction - labels[i]) * sampleWeights[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += residual * sample[j]
			}
			biasGrad += residual
		}
		for j := 0; j < featureCount; j++ {
			weights[j] -= opts.LearningRate * grad[j] / float64(n)
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	w := Weights{Bias: bias, Coefficients: weights}
	return w, EvaluateLogistic(w, samples, labels)
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

// EvaluateLogistic reports log loss and accuracy at the 0.5 threshold.
func EvaluateLogistic(w Weights, samples [][]float64, labels []float64) Metrics {
	if len(samples) == 0 {
		return Metrics{}
	}
	var loss float64
	var correct int
	for i, sample := range samples {
		prediction := Predict(w, sample)
		loss += -labels[i]*math.Log(prediction+1e-9) - (1-labels[i])*math.Log(1-prediction+1e-9)
		if (prediction >= 0.5 && labels[i] == 1) || (prediction < 0.5 && labels[i] == 0) {
			correct++
		}
	}
	return Metrics{
		Loss:     loss / float64(len(samples)),
		Accuracy: float64(correct) / float64(len(samples)),
	}
}

func classWeights(labels []float64, balance bool) []float64 {
	out := make([]float64, len(labels))
	var positives float64
	for _, l := range labels {
		positives += l
	}
	negatives := float64(len(labels)) - positives
	for i, l := range labels {
		out[i] = 1
		if !balance || positives == 0 || negatives == 0 {
			continue
		}
		if l == 1 {
			out[i] = float64(len(labels)) / (2 * positives)
		} else {
			out[i] = float64(len(labels)) / (2 * negatives)
		}
	}
	return out
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights) && i < len(sample); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
