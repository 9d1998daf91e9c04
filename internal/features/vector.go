// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package features turns a parsed URL into namespaced numeric feature
// vectors. Keys are prefixed per extractor (lexical_, pattern_, host_,
// network_) so vectors from independent extractors can be merged without
// collision.
package features

// Vector maps a namespaced feature name to its numeric value. Boolean
// features are stored as 0/1.
type Vector map[string]float64

func NewVector() Vector {
	return make(Vector)
}

func (v Vector) Set(name string, value float64) {
	v[name] = value
}

func (v Vector) SetInt(name string, value int) {
	v[name] = float64(value)
}

func (v Vector) SetBool(name string, value bool) {
	if value {
		v[name] = 1
	} else {
		v[name] = 0
	}
}

// Get returns the value for name, defaulting to 0 for absent keys. The
// zero default is what keeps the classifier's frozen feature ordering
// usable on vectors from partially-enabled extractors.
func (v Vector) Get(name string) float64 {
	return v[name]
}

func (v Vector) Bool(name string) bool {
	return v[name] != 0
}

// Merge copies every entry of other into v and returns v.
func (v Vector) Merge(other Vector) Vector {
	for name, value := range other {
		v[name] = value
	}
	return v
}
