package model

import (
	"sort"
)

// node is one split or leaf of a regression tree. Leaves carry the mean
// target of their training samples.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	value     float64
	leaf      bool
}

// tree is a least-squares regression tree. Splits maximize squared-error
// reduction; growth stops at maxDepth or when a child would fall under
// minLeaf samples.
type tree struct {
	root *node
	// gain[f] is the total squared-error reduction attributed to splits
	// on feature f.
	gain []float64
}

func fitTree(X [][]float64, y []float64, idx []int, maxDepth, minLeaf int) *tree {
	t := &tree{gain: make([]float64, len(X[0]))}
	t.root = t.grow(X, y, idx, 0, maxDepth, minLeaf)
	return t
}

func (t *tree) grow(X [][]float64, y []float64, idx []int, depth, maxDepth, minLeaf int) *node {
	mean := meanAt(y, idx)
	if depth >= maxDepth || len(idx) < 2*minLeaf {
		return &node{leaf: true, value: mean}
	}

	feature, threshold, gain, ok := bestSplit(X, y, idx, minLeaf)
	if !ok {
		return &node{leaf: true, value: mean}
	}
	t.gain[feature] += gain

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      t.grow(X, y, left, depth+1, maxDepth, minLeaf),
		right:     t.grow(X, y, right, depth+1, maxDepth, minLeaf),
	}
}

// bestSplit scans every feature for the threshold with the largest
// squared-error reduction. Thresholds sit between adjacent distinct
// values; splits leaving a child under minLeaf are rejected.
func bestSplit(X [][]float64, y []float64, idx []int, minLeaf int) (feature int, threshold, gain float64, ok bool) {
	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += y[i]
		totalSq += y[i] * y[i]
	}
	n := float64(len(idx))
	parentSSE := totalSq - totalSum*totalSum/n

	order := make([]int, len(idx))
	for f := 0; f < len(X[idx[0]]); f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftSum, leftSq float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			v, next := X[i][f], X[order[pos+1]][f]
			if v == next {
				continue
			}
			nLeft := float64(pos + 1)
			nRight := n - nLeft
			if int(nLeft) < minLeaf || int(nRight) < minLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nLeft) + (rightSq - rightSum*rightSum/nRight)
			if g := parentSSE - sse; g > gain {
				feature = f
				threshold = (v + next) / 2
				gain = g
				ok = true
			}
		}
	}
	return feature, threshold, gain, ok
}

func (t *tree) predict(x []float64) float64 {
	n := t.root
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func meanAt(y []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
