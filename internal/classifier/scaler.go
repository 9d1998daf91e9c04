// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package classifier

import "math"

// StandardScaler standardizes features to zero mean and unit variance.
// Statistics are fit only on the training split and reused verbatim at
// inference.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func (s *StandardScaler) Fit(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	for j := 0; j < cols; j++ {
		var sum float64
		for _, row := range rows {
			sum += row[j]
		}
		mean := sum / float64(len(rows))
		s.Mean[j] = mean

		var sq float64
		for _, row := range rows {
			d := row[j] - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(len(rows)))
		if std == 0 {
			std = 1 // constant feature; leave it centered
		}
		s.Std[j] = std
	}
}

func (s *StandardScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.TransformRow(row)
	}
	return out
}

func (s *StandardScaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if j < len(s.Mean) {
			out[j] = (v - s.Mean[j]) / s.Std[j]
		} else {
			out[j] = v
		}
	}
	return out
}

func (s *StandardScaler) FitTransform(rows [][]float64) [][]float64 {
	s.Fit(rows)
	return s.Transform(rows)
}
