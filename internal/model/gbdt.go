package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Config holds the boosting hyperparameters. Defaults match the tuning
// the pipeline was calibrated with; they are not searched at runtime.
type Config struct {
	Trees        int
	MaxDepth     int
	LearningRate float64
	Subsample    float64
	MinLeaf      int
	Seed         int64
}

// DefaultConfig returns the standard ensemble configuration.
func DefaultConfig() Config {
	return Config{
		Trees:        300,
		MaxDepth:     4,
		LearningRate: 0.05,
		Subsample:    0.8,
		MinLeaf:      10,
		Seed:         42,
	}
}

// GBDT is a gradient-boosted ensemble of least-squares regression trees.
// Training is deterministic for a given Config and input.
type GBDT struct {
	cfg   Config
	base  float64
	trees []*tree
	gain  []float64
}

// Train fits a boosted ensemble on X (rows of features) and y. Each
// round fits a depth-limited tree to the current residuals on a random
// subsample and shrinks its contribution by the learning rate.
func Train(X [][]float64, y []float64, cfg Config) (*GBDT, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("model: no training rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("model: %d rows but %d targets", len(X), len(y))
	}

	m := &GBDT{
		cfg:  cfg,
		base: stat.Mean(y, nil),
		gain: make([]float64, len(X[0])),
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
	}
	residual := make([]float64, len(y))

	sampleSize := int(cfg.Subsample * float64(len(X)))
	if sampleSize < 1 {
		sampleSize = 1
	}

	for round := 0; round < cfg.Trees; round++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		idx := rng.Perm(len(X))[:sampleSize]

		t := fitTree(X, residual, idx, cfg.MaxDepth, cfg.MinLeaf)
		m.trees = append(m.trees, t)
		floats.Add(m.gain, t.gain)

		for i := range X {
			pred[i] += cfg.LearningRate * t.predict(X[i])
		}
	}
	return m, nil
}

// Predict scores one feature row.
func (m *GBDT) Predict(x []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.cfg.LearningRate * t.predict(x)
	}
	return out
}

// PredictAll scores every row of X.
func (m *GBDT) PredictAll(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = m.Predict(X[i])
	}
	return out
}

// Importances returns per-feature importance as the normalized total
// squared-error reduction across all trees. The values sum to 1 unless
// no split was ever made.
func (m *GBDT) Importances() []float64 {
	out := append([]float64(nil), m.gain...)
	total := floats.Sum(out)
	if total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}
