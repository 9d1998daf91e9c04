// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package classifier trains and serves the URL risk models. A
// Classifier freezes the feature-name order at training time, scales
// inputs with statistics from the training split only, and persists
// everything needed for inference as a single JSON document.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"phishdetect/internal/features"
	"phishdetect/internal/models"
)

// ErrNotTrained is returned by Predict when no trained model is loaded.
var ErrNotTrained = errors.New("classifier: model is not trained")

const (
	trainSeed     = 42
	holdoutShare  = 0.2
	cvFolds       = 5
	minTrainRows  = 10
	schemaVersion = 1
)

// Kind selects the model family.
type Kind string

const (
	KindLogistic      Kind = "logistic"
	KindRandomForest  Kind = "random_forest"
	KindGradientBoost Kind = "gradient_boost"
	KindEnsemble      Kind = "ensemble"
)

// KindFromString validates and converts a configuration value.
func KindFromString(s string) (Kind, error) {
	switch Kind(s) {
	case KindLogistic, KindRandomForest, KindGradientBoost, KindEnsemble:
		return Kind(s), nil
	}
	return "", fmt.Errorf("classifier: unknown model kind %q", s)
}

// FeatureWeight pairs a feature name with its importance score.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Classifier wraps one or more learners behind a single train/predict
// surface. The ensemble kind soft-votes the probabilities of all three
// model families.
type Classifier struct {
	kind         Kind
	featureNames []string
	scaler       *StandardScaler

	logistic *Logistic
	forest   *Forest
	boost    *GradientBoost

	trained bool
	metrics models.TrainMetrics
}

func New(kind Kind) *Classifier {
	return &Classifier{kind: kind}
}

func (c *Classifier) Kind() Kind    { return c.kind }
func (c *Classifier) Trained() bool { return c.trained }

// Metrics returns the evaluation metrics captured at training time.
func (c *Classifier) Metrics() models.TrainMetrics { return c.metrics }

// FeatureNames returns the frozen feature order.
func (c *Classifier) FeatureNames() []string {
	out := make([]string, len(c.featureNames))
	copy(out, c.featureNames)
	return out
}

// Train fits the configured learners on the labeled samples. Feature
// names are collected across all samples and sorted so the column
// order is deterministic; the scaler and hold-out metrics come from a
// stratified 80/20 split.
func (c *Classifier) Train(samples []features.Vector, labels []int) (models.TrainMetrics, error) {
	if len(samples) != len(labels) {
		return models.TrainMetrics{}, fmt.Errorf("classifier: %d samples but %d labels", len(samples), len(labels))
	}
	if len(samples) < minTrainRows {
		return models.TrainMetrics{}, fmt.Errorf("classifier: need at least %d samples, got %d", minTrainRows, len(samples))
	}

	c.featureNames = collectFeatureNames(samples)
	rows := make([][]float64, len(samples))
	for i, v := range samples {
		rows[i] = c.vectorToRow(v)
	}

	trainIdx, testIdx := stratifiedSplit(labels, holdoutShare, trainSeed)

	trainRows := selectRows(rows, trainIdx)
	trainLabels := selectLabels(labels, trainIdx)
	testRows := selectRows(rows, testIdx)
	testLabels := selectLabels(labels, testIdx)

	c.scaler = &StandardScaler{}
	scaledTrain := c.scaler.FitTransform(trainRows)
	scaledTest := c.scaler.Transform(testRows)

	c.fitLearners(scaledTrain, trainLabels)
	c.trained = true

	m := c.evaluate(scaledTest, testLabels)
	m.CVF1Mean, m.CVF1Std = c.crossValidate(rows, labels)
	c.metrics = m
	return m, nil
}

func (c *Classifier) fitLearners(rows [][]float64, labels []int) {
	rng := rand.New(rand.NewSource(trainSeed))

	c.logistic, c.forest, c.boost = nil, nil, nil

	if c.kind == KindLogistic || c.kind == KindEnsemble {
		c.logistic = newLogistic()
		c.logistic.fit(rows, labels)
	}
	if c.kind == KindRandomForest || c.kind == KindEnsemble {
		c.forest = newForest()
		c.forest.fit(rows, labels, rng)
	}
	if c.kind == KindGradientBoost || c.kind == KindEnsemble {
		c.boost = newGradientBoost()
		c.boost.fit(rows, labels, rng)
	}
}

// Predict returns the phishing probability for one feature vector.
// Features absent from the vector contribute their zero value;
// features unseen at training time are ignored.
func (c *Classifier) Predict(v features.Vector) (float64, error) {
	if !c.trained {
		return 0, ErrNotTrained
	}
	row := c.scaler.TransformRow(c.vectorToRow(v))
	return c.predictRow(row), nil
}

func (c *Classifier) predictRow(row []float64) float64 {
	var sum float64
	var n int
	if c.logistic != nil {
		sum += c.logistic.predictProba(row)
		n++
	}
	if c.forest != nil {
		sum += c.forest.predictProba(row)
		n++
	}
	if c.boost != nil {
		sum += c.boost.predictProba(row)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// RiskLevel maps a model probability to a coarse level.
func RiskLevel(score float64) models.RiskLevel {
	switch {
	case score >= 0.8:
		return models.RiskHigh
	case score >= 0.5:
		return models.RiskMedium
	case score >= 0.3:
		return models.RiskLow
	default:
		return models.RiskSafe
	}
}

// FeatureImportance returns the top n features by importance. Forest
// gini decreases are preferred; the logistic fallback uses absolute
// standardized weights.
func (c *Classifier) FeatureImportance(n int) []FeatureWeight {
	if !c.trained {
		return nil
	}

	weights := make([]FeatureWeight, 0, len(c.featureNames))
	switch {
	case c.forest != nil && len(c.forest.Importances) == len(c.featureNames):
		for j, name := range c.featureNames {
			weights = append(weights, FeatureWeight{Name: name, Weight: c.forest.Importances[j]})
		}
	case c.logistic != nil && len(c.logistic.Weights) == len(c.featureNames):
		for j, name := range c.featureNames {
			w := c.logistic.Weights[j]
			if w < 0 {
				w = -w
			}
			weights = append(weights, FeatureWeight{Name: name, Weight: w})
		}
	default:
		return nil
	}

	sort.Slice(weights, func(a, b int) bool { return weights[a].Weight > weights[b].Weight })
	if n > 0 && n < len(weights) {
		weights = weights[:n]
	}
	return weights
}

func (c *Classifier) evaluate(rows [][]float64, labels []int) models.TrainMetrics {
	scores := make([]float64, len(rows))
	preds := make([]int, len(rows))
	for i, row := range rows {
		scores[i] = c.predictRow(row)
		if scores[i] >= 0.5 {
			preds[i] = 1
		}
	}

	precision, recall, f1 := precisionRecallF1(labels, preds)
	return models.TrainMetrics{
		Accuracy:  accuracy(labels, preds),
		Precision: precision,
		Recall:    recall,
		F1:        f1,
		ROCAUC:    rocAUC(labels, scores),
	}
}

// crossValidate runs k-fold CV on fresh learners and reports the F1
// mean and standard deviation. The Classifier's own fitted learners
// are restored afterwards.
func (c *Classifier) crossValidate(rows [][]float64, labels []int) (mean, std float64) {
	savedLog, savedForest, savedBoost := c.logistic, c.forest, c.boost
	savedScaler := c.scaler
	defer func() {
		c.logistic, c.forest, c.boost = savedLog, savedForest, savedBoost
		c.scaler = savedScaler
	}()

	n := len(rows)
	order := rand.New(rand.NewSource(trainSeed)).Perm(n)

	var f1s []float64
	for fold := 0; fold < cvFolds; fold++ {
		var trainIdx, testIdx []int
		for pos, i := range order {
			if pos%cvFolds == fold {
				testIdx = append(testIdx, i)
			} else {
				trainIdx = append(trainIdx, i)
			}
		}
		if len(testIdx) == 0 || len(trainIdx) == 0 {
			continue
		}

		c.scaler = &StandardScaler{}
		scaledTrain := c.scaler.FitTransform(selectRows(rows, trainIdx))
		c.fitLearners(scaledTrain, selectLabels(labels, trainIdx))

		scaledTest := c.scaler.Transform(selectRows(rows, testIdx))
		m := c.evaluate(scaledTest, selectLabels(labels, testIdx))
		f1s = append(f1s, m.F1)
	}

	if len(f1s) == 0 {
		return 0, 0
	}
	for _, v := range f1s {
		mean += v
	}
	mean /= float64(len(f1s))
	var sq float64
	for _, v := range f1s {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(f1s)))
	return mean, std
}

func (c *Classifier) vectorToRow(v features.Vector) []float64 {
	row := make([]float64, len(c.featureNames))
	for j, name := range c.featureNames {
		row[j] = v.Get(name)
	}
	return row
}

// modelDocument is the on-disk JSON layout.
type modelDocument struct {
	SchemaVersion int                 `json:"schema_version"`
	Kind          Kind                `json:"kind"`
	IsTrained     bool                `json:"is_trained"`
	FeatureNames  []string            `json:"feature_names"`
	Scaler        *StandardScaler     `json:"scaler,omitempty"`
	Logistic      *Logistic           `json:"logistic,omitempty"`
	Forest        *Forest             `json:"random_forest,omitempty"`
	Boost         *GradientBoost      `json:"gradient_boost,omitempty"`
	Metrics       models.TrainMetrics `json:"metrics"`
}

// Save writes the model atomically via a temp file and rename.
func (c *Classifier) Save(path string) error {
	doc := modelDocument{
		SchemaVersion: schemaVersion,
		Kind:          c.kind,
		IsTrained:     c.trained,
		FeatureNames:  c.featureNames,
		Scaler:        c.scaler,
		Logistic:      c.logistic,
		Forest:        c.forest,
		Boost:         c.boost,
		Metrics:       c.metrics,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("classifier: encode model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("classifier: create temp model file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("classifier: write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("classifier: close model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("classifier: replace model file: %w", err)
	}
	return nil
}

// Load reads a model document from disk. A document saved with
// is_trained=false loads cleanly but Predict keeps failing with
// ErrNotTrained.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: read model: %w", err)
	}

	var doc modelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("classifier: decode model: %w", err)
	}
	if _, err := KindFromString(string(doc.Kind)); err != nil {
		return nil, err
	}
	if doc.IsTrained && (len(doc.FeatureNames) == 0 || doc.Scaler == nil) {
		return nil, fmt.Errorf("classifier: model document at %s is trained but incomplete", path)
	}

	return &Classifier{
		kind:         doc.Kind,
		featureNames: doc.FeatureNames,
		scaler:       doc.Scaler,
		logistic:     doc.Logistic,
		forest:       doc.Forest,
		boost:        doc.Boost,
		trained:      doc.IsTrained,
		metrics:      doc.Metrics,
	}, nil
}

func collectFeatureNames(samples []features.Vector) []string {
	seen := make(map[string]bool)
	for _, v := range samples {
		for name := range v {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stratifiedSplit partitions sample indexes into train and test sets
// while preserving the class balance.
func stratifiedSplit(labels []int, testShare float64, seed int64) (trainIdx, testIdx []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := map[int][]int{}
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}

	classes := make([]int, 0, len(byClass))
	for y := range byClass {
		classes = append(classes, y)
	}
	sort.Ints(classes)

	for _, y := range classes {
		idx := byClass[y]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		nTest := int(float64(len(idx)) * testShare)
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}
	return trainIdx, testIdx
}

func selectRows(rows [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func selectLabels(labels []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}
