package model

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics summarizes prediction error over a sample.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
	MAPE float64 `json:"mape"`
}

// Evaluate scores predictions against actuals. MAPE floors the
// denominator at one lead per day so zero-lead days do not blow up the
// percentage.
func Evaluate(actual, predicted []float64) Metrics {
	var m Metrics
	if len(actual) == 0 {
		return m
	}

	var absSum, sqSum, mapeSum float64
	for i := range actual {
		diff := actual[i] - predicted[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		mapeSum += math.Abs(diff) / math.Max(actual[i], 1)
	}
	n := float64(len(actual))

	m.MAE = absSum / n
	m.RMSE = math.Sqrt(sqSum / n)
	m.MAPE = mapeSum / n * 100

	mean := stat.Mean(actual, nil)
	var totSS float64
	for _, v := range actual {
		totSS += (v - mean) * (v - mean)
	}
	if totSS > 0 {
		m.R2 = 1 - sqSum/totSS
	}
	return m
}

// MAE returns the mean absolute error alone.
func MAE(actual, predicted []float64) float64 {
	return Evaluate(actual, predicted).MAE
}
