// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package classifier

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a CART tree. Leaves carry the positive-class
// fraction (classification) or the fitted value (regression).
type treeNode struct {
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) predict(row []float64) float64 {
	node := n
	for !node.Leaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	// features considered per split; 0 means all
	maxFeatures int
	// regression switches the split criterion from gini to variance
	regression bool
}

type splitResult struct {
	feature   int
	threshold float64
	gain      float64
	leftIdx   []int
	rightIdx  []int
}

// buildTree grows a CART tree over the rows referenced by idx. The
// importances slice, when non-nil, accumulates impurity decrease per
// feature weighted by the number of samples reaching the split.
func buildTree(rows [][]float64, target []float64, idx []int, depth int, p treeParams, rng *rand.Rand, importances []float64) *treeNode {
	if len(idx) == 0 {
		return &treeNode{Leaf: true, Value: 0}
	}

	value := meanTarget(target, idx)
	if depth >= p.maxDepth || len(idx) < p.minSamplesSplit || impurity(target, idx, p.regression) == 0 {
		return &treeNode{Leaf: true, Value: value}
	}

	best := findBestSplit(rows, target, idx, p, rng)
	if best == nil || len(best.leftIdx) < p.minSamplesLeaf || len(best.rightIdx) < p.minSamplesLeaf {
		return &treeNode{Leaf: true, Value: value}
	}

	if importances != nil {
		importances[best.feature] += best.gain * float64(len(idx))
	}

	return &treeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      buildTree(rows, target, best.leftIdx, depth+1, p, rng, importances),
		Right:     buildTree(rows, target, best.rightIdx, depth+1, p, rng, importances),
	}
}

func findBestSplit(rows [][]float64, target []float64, idx []int, p treeParams, rng *rand.Rand) *splitResult {
	cols := len(rows[0])

	candidates := make([]int, cols)
	for j := range candidates {
		candidates[j] = j
	}
	if p.maxFeatures > 0 && p.maxFeatures < cols {
		rng.Shuffle(cols, func(a, b int) { candidates[a], candidates[b] = candidates[b], candidates[a] })
		candidates = candidates[:p.maxFeatures]
	}

	parentImpurity := impurity(target, idx, p.regression)

	var best *splitResult
	sorted := make([]int, len(idx))

	for _, j := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return rows[sorted[a]][j] < rows[sorted[b]][j] })

		for i := 1; i < len(sorted); i++ {
			lo, hi := rows[sorted[i-1]][j], rows[sorted[i]][j]
			if lo == hi {
				continue
			}
			threshold := (lo + hi) / 2

			leftIdx := sorted[:i]
			rightIdx := sorted[i:]

			nl, nr := float64(len(leftIdx)), float64(len(rightIdx))
			weighted := (nl*impurity(target, leftIdx, p.regression) +
				nr*impurity(target, rightIdx, p.regression)) / (nl + nr)
			gain := parentImpurity - weighted

			if best == nil || gain > best.gain {
				best = &splitResult{
					feature:   j,
					threshold: threshold,
					gain:      gain,
					leftIdx:   append([]int(nil), leftIdx...),
					rightIdx:  append([]int(nil), rightIdx...),
				}
			}
		}
	}

	if best != nil && best.gain <= 0 {
		return nil
	}
	return best
}

func impurity(target []float64, idx []int, regression bool) float64 {
	if regression {
		return variance(target, idx)
	}
	return gini(target, idx)
}

func gini(target []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var pos float64
	for _, i := range idx {
		pos += target[i]
	}
	p := pos / float64(len(idx))
	return 2 * p * (1 - p)
}

func variance(target []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	mean := meanTarget(target, idx)
	var sq float64
	for _, i := range idx {
		d := target[i] - mean
		sq += d * d
	}
	return sq / float64(len(idx))
}

func meanTarget(target []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += target[i]
	}
	return sum / float64(len(idx))
}

// Forest is a bagged ensemble of classification trees with per-split
// feature subsampling.
type Forest struct {
	Trees       []*treeNode `json:"trees"`
	Importances []float64   `json:"importances"`

	NumTrees        int `json:"num_trees"`
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
}

func newForest() *Forest {
	return &Forest{
		NumTrees:        100,
		MaxDepth:        20,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
	}
}

func (f *Forest) fit(rows [][]float64, labels []int, rng *rand.Rand) {
	n := len(rows)
	if n == 0 {
		return
	}
	cols := len(rows[0])

	target := make([]float64, n)
	for i, y := range labels {
		target[i] = float64(y)
	}

	params := treeParams{
		maxDepth:        f.MaxDepth,
		minSamplesSplit: f.MinSamplesSplit,
		minSamplesLeaf:  f.MinSamplesLeaf,
		maxFeatures:     int(math.Ceil(math.Sqrt(float64(cols)))),
	}

	f.Trees = make([]*treeNode, 0, f.NumTrees)
	f.Importances = make([]float64, cols)

	for t := 0; t < f.NumTrees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.Trees = append(f.Trees, buildTree(rows, target, idx, 0, params, rng, f.Importances))
	}

	var total float64
	for _, v := range f.Importances {
		total += v
	}
	if total > 0 {
		for j := range f.Importances {
			f.Importances[j] /= total
		}
	}
}

func (f *Forest) predictProba(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, tree := range f.Trees {
		sum += tree.predict(row)
	}
	return sum / float64(len(f.Trees))
}
