// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package classifier

import "math"

// Logistic is a binary logistic-regression model fit by batch gradient
// descent on standardized inputs.
type Logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`

	LearnRate float64 `json:"learn_rate"`
	MaxIter   int     `json:"max_iter"`
}

func newLogistic() *Logistic {
	return &Logistic{LearnRate: 0.1, MaxIter: 1000}
}

func (m *Logistic) fit(rows [][]float64, labels []int) {
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	m.Weights = make([]float64, cols)
	m.Bias = 0

	n := float64(len(rows))
	for iter := 0; iter < m.MaxIter; iter++ {
		gradW := make([]float64, cols)
		gradB := 0.0

		for i, row := range rows {
			err := sigmoid(m.decision(row)) - float64(labels[i])
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
		}

		for j := range m.Weights {
			m.Weights[j] -= m.LearnRate * gradW[j] / n
		}
		m.Bias -= m.LearnRate * gradB / n
	}
}

func (m *Logistic) predictProba(row []float64) float64 {
	return sigmoid(m.decision(row))
}

func (m *Logistic) decision(row []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		if j < len(row) {
			z += w * row[j]
		}
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
