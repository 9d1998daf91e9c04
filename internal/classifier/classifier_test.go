// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package classifier

import (
	"math/rand"
	"path/filepath"
	"testing"

	"phishdetect/internal/features"
	"phishdetect/internal/models"
)

// syntheticSamples builds a linearly separable two-feature dataset:
// positives sit high on url_length and keyword_count, negatives low.
func syntheticSamples(n int) ([]features.Vector, []int) {
	rng := rand.New(rand.NewSource(7))
	samples := make([]features.Vector, 0, n)
	labels := make([]int, 0, n)

	for i := 0; i < n; i++ {
		v := features.Vector{}
		if i%2 == 0 {
			v.Set("lexical_url_length", 120+rng.Float64()*60)
			v.Set("pattern_suspicious_keyword_count", 3+rng.Float64()*3)
			v.Set("lexical_entropy", 4.2+rng.Float64())
			labels = append(labels, 1)
		} else {
			v.Set("lexical_url_length", 20+rng.Float64()*30)
			v.Set("pattern_suspicious_keyword_count", rng.Float64())
			v.Set("lexical_entropy", 2.5+rng.Float64())
			labels = append(labels, 0)
		}
		samples = append(samples, v)
	}
	return samples, labels
}

func TestTrainAndPredictSeparableData(t *testing.T) {
	kinds := []Kind{KindLogistic, KindRandomForest, KindGradientBoost, KindEnsemble}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			samples, labels := syntheticSamples(80)

			c := New(kind)
			m, err := c.Train(samples, labels)
			if err != nil {
				t.Fatalf("Train: %v", err)
			}
			if m.Accuracy < 0.9 {
				t.Errorf("hold-out accuracy = %.3f, want >= 0.9", m.Accuracy)
			}
			if m.ROCAUC < 0.9 {
				t.Errorf("ROC AUC = %.3f, want >= 0.9", m.ROCAUC)
			}

			phishy := features.Vector{}
			phishy.Set("lexical_url_length", 150)
			phishy.Set("pattern_suspicious_keyword_count", 5)
			phishy.Set("lexical_entropy", 4.8)

			benign := features.Vector{}
			benign.Set("lexical_url_length", 25)
			benign.Set("pattern_suspicious_keyword_count", 0)
			benign.Set("lexical_entropy", 2.8)

			pHigh, err := c.Predict(phishy)
			if err != nil {
				t.Fatalf("Predict(phishy): %v", err)
			}
			pLow, err := c.Predict(benign)
			if err != nil {
				t.Fatalf("Predict(benign): %v", err)
			}
			if pHigh <= pLow {
				t.Errorf("phishy score %.3f should exceed benign score %.3f", pHigh, pLow)
			}
			if pHigh < 0.5 {
				t.Errorf("phishy score = %.3f, want >= 0.5", pHigh)
			}
		})
	}
}

func TestPredictNotTrained(t *testing.T) {
	c := New(KindLogistic)
	if _, err := c.Predict(features.Vector{}); err != ErrNotTrained {
		t.Errorf("Predict on untrained model: err = %v, want ErrNotTrained", err)
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	c := New(KindLogistic)

	samples, labels := syntheticSamples(20)
	if _, err := c.Train(samples, labels[:10]); err == nil {
		t.Error("Train with mismatched labels should fail")
	}
	if _, err := c.Train(samples[:4], labels[:4]); err == nil {
		t.Error("Train with too few samples should fail")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	samples, labels := syntheticSamples(60)

	c := New(KindEnsemble)
	if _, err := c.Train(samples, labels); err != nil {
		t.Fatalf("Train: %v", err)
	}

	probe := features.Vector{}
	probe.Set("lexical_url_length", 140)
	probe.Set("pattern_suspicious_keyword_count", 4)
	probe.Set("lexical_entropy", 4.5)

	want, err := c.Predict(probe)
	if err != nil {
		t.Fatalf("Predict before save: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Kind() != KindEnsemble {
		t.Errorf("loaded kind = %q, want %q", loaded.Kind(), KindEnsemble)
	}
	if !loaded.Trained() {
		t.Error("loaded model should report trained")
	}

	got, err := loaded.Predict(probe)
	if err != nil {
		t.Fatalf("Predict after load: %v", err)
	}
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("prediction drifted across save/load: got %.9f, want %.9f", got, want)
	}

	if m := loaded.Metrics(); m.Accuracy != c.Metrics().Accuracy {
		t.Errorf("metrics not preserved: got accuracy %.3f, want %.3f", m.Accuracy, c.Metrics().Accuracy)
	}
}

func TestLoadUntrainedModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")

	c := New(KindLogistic)
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := loaded.Predict(features.Vector{}); err != ErrNotTrained {
		t.Errorf("Predict on loaded untrained model: err = %v, want ErrNotTrained", err)
	}
}

func TestFeatureImportance(t *testing.T) {
	samples, labels := syntheticSamples(60)

	c := New(KindRandomForest)
	if _, err := c.Train(samples, labels); err != nil {
		t.Fatalf("Train: %v", err)
	}

	top := c.FeatureImportance(2)
	if len(top) != 2 {
		t.Fatalf("FeatureImportance(2) returned %d entries", len(top))
	}
	if top[0].Weight < top[1].Weight {
		t.Errorf("importances not sorted: %v", top)
	}
	for _, fw := range top {
		if fw.Weight <= 0 {
			t.Errorf("feature %q has non-positive importance %.4f", fw.Name, fw.Weight)
		}
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0.95, models.RiskHigh},
		{0.8, models.RiskHigh},
		{0.79, models.RiskMedium},
		{0.5, models.RiskMedium},
		{0.49, models.RiskLow},
		{0.3, models.RiskLow},
		{0.29, models.RiskSafe},
		{0.0, models.RiskSafe},
	}
	for _, tt := range tests {
		if got := RiskLevel(tt.score); got != tt.want {
			t.Errorf("RiskLevel(%.2f) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestKindFromString(t *testing.T) {
	for _, s := range []string{"logistic", "random_forest", "gradient_boost", "ensemble"} {
		if _, err := KindFromString(s); err != nil {
			t.Errorf("KindFromString(%q): %v", s, err)
		}
	}
	if _, err := KindFromString("svm"); err == nil {
		t.Error("KindFromString(\"svm\") should fail")
	}
}
