// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package classifier

import (
	"math"
	"math/rand"
)

// GradientBoost is a gradient-boosted ensemble of shallow regression
// trees fit on logistic-loss residuals, with Newton leaf values.
type GradientBoost struct {
	Trees    []*treeNode `json:"trees"`
	BasePred float64     `json:"base_pred"`

	NumTrees  int     `json:"num_trees"`
	MaxDepth  int     `json:"max_depth"`
	LearnRate float64 `json:"learn_rate"`
}

func newGradientBoost() *GradientBoost {
	return &GradientBoost{
		NumTrees:  100,
		MaxDepth:  3,
		LearnRate: 0.1,
	}
}

func (g *GradientBoost) fit(rows [][]float64, labels []int, rng *rand.Rand) {
	n := len(rows)
	if n == 0 {
		return
	}

	var pos float64
	for _, y := range labels {
		pos += float64(y)
	}
	p := pos / float64(n)
	// clamp so the initial log-odds stays finite on one-class data
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	g.BasePred = math.Log(p / (1 - p))

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.BasePred
	}

	params := treeParams{
		maxDepth:        g.MaxDepth,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		regression:      true,
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	residuals := make([]float64, n)
	g.Trees = make([]*treeNode, 0, g.NumTrees)

	for t := 0; t < g.NumTrees; t++ {
		for i := range rows {
			residuals[i] = float64(labels[i]) - sigmoid(raw[i])
		}

		tree := buildTree(rows, residuals, idx, 0, params, rng, nil)
		newtonLeaves(tree, rows, raw, labels, idx)
		g.Trees = append(g.Trees, tree)

		for i, row := range rows {
			raw[i] += g.LearnRate * tree.predict(row)
		}
	}
}

// newtonLeaves replaces each leaf's mean-residual value with the
// Newton step sum(residual) / sum(p*(1-p)) over the samples routed to
// that leaf.
func newtonLeaves(root *treeNode, rows [][]float64, raw []float64, labels []int, idx []int) {
	type agg struct{ num, den float64 }
	buckets := make(map[*treeNode]*agg)

	for _, i := range idx {
		node := root
		for !node.Leaf {
			if rows[i][node.Feature] <= node.Threshold {
				node = node.Left
			} else {
				node = node.Right
			}
		}
		a := buckets[node]
		if a == nil {
			a = &agg{}
			buckets[node] = a
		}
		p := sigmoid(raw[i])
		a.num += float64(labels[i]) - p
		a.den += p * (1 - p)
	}

	for leaf, a := range buckets {
		if a.den > 1e-12 {
			leaf.Value = a.num / a.den
		}
	}
}

func (g *GradientBoost) predictProba(row []float64) float64 {
	raw := g.BasePred
	for _, tree := range g.Trees {
		raw += g.LearnRate * tree.predict(row)
	}
	return sigmoid(raw)
}
