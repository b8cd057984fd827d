package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// CVResult reports walk-forward cross-validation error.
type CVResult struct {
	FoldMAE []float64 `json:"fold_mae"`
	MeanMAE float64   `json:"mean_mae"`
	StdMAE  float64   `json:"std_mae"`
}

// WalkForwardCV runs expanding-window cross-validation on
// chronologically ordered data. The rows are cut into splits+1 blocks;
// fold i trains on blocks 0..i and tests on block i+1, so every test
// sample is strictly later than everything it was predicted from.
func WalkForwardCV(X [][]float64, y []float64, splits int, cfg Config) (CVResult, error) {
	var res CVResult
	if splits < 1 {
		return res, fmt.Errorf("model: need at least 1 split, got %d", splits)
	}
	n := len(X)
	if n < splits+1 {
		return res, fmt.Errorf("model: %d rows cannot form %d folds", n, splits)
	}

	// Block sizing follows the usual expanding-window convention: the
	// first block absorbs the remainder, every later block has equal
	// size.
	foldSize := n / (splits + 1)
	firstTestStart := n - splits*foldSize

	for fold := 0; fold < splits; fold++ {
		testStart := firstTestStart + fold*foldSize
		testEnd := testStart + foldSize

		m, err := Train(X[:testStart], y[:testStart], cfg)
		if err != nil {
			return res, fmt.Errorf("model: fold %d: %w", fold, err)
		}
		pred := m.PredictAll(X[testStart:testEnd])
		res.FoldMAE = append(res.FoldMAE, MAE(y[testStart:testEnd], pred))
	}

	res.MeanMAE = stat.Mean(res.FoldMAE, nil)
	if len(res.FoldMAE) > 1 {
		res.StdMAE = math.Sqrt(stat.PopVariance(res.FoldMAE, nil))
	}
	return res, nil
}
