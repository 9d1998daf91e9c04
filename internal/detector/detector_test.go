// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"phishdetect/internal/classifier"
	"phishdetect/internal/features"
	"phishdetect/internal/intel"
	"phishdetect/internal/models"
	"phishdetect/internal/telemetry"
	"phishdetect/internal/urlproc"
)

type stubSource struct {
	name      string
	malicious map[string]bool
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Check(_ context.Context, url string) (intel.SourceResult, error) {
	return intel.SourceResult{IsMalicious: s.malicious[url]}, nil
}

func newTestDetector(opts ...Option) *Detector {
	return New(urlproc.New(urlproc.DefaultMaxLength), nil, opts...)
}

func TestAnalyzeURLRuleBasedHighRisk(t *testing.T) {
	d := newTestDetector()

	v := d.AnalyzeURL(context.Background(), "http://192.168.1.1/amazon/signin", false)

	if v.Error != "" {
		t.Fatalf("unexpected error: %s", v.Error)
	}
	// no verified cert 0.2 + two keywords 0.2 + IP host 0.4 = 0.8
	if v.RiskScore < 0.8-1e-9 {
		t.Errorf("risk score = %.2f, want 0.8", v.RiskScore)
	}
	if v.RiskLevel != models.RiskHigh {
		t.Errorf("risk level = %q, want HIGH", v.RiskLevel)
	}
	if !v.IsPhishing {
		t.Error("verdict should flag phishing")
	}

	joined := strings.Join(v.Reasons, "; ")
	if !strings.Contains(joined, "IP address") {
		t.Errorf("reasons should mention the IP host, got %q", joined)
	}
	if !strings.Contains(joined, "keyword") {
		t.Errorf("reasons should mention keywords, got %q", joined)
	}
}

func TestAnalyzeURLCleanDomain(t *testing.T) {
	d := newTestDetector()

	v := d.AnalyzeURL(context.Background(), "https://www.example.org/about", false)

	if v.Error != "" {
		t.Fatalf("unexpected error: %s", v.Error)
	}
	if v.IsPhishing {
		t.Error("clean URL flagged as phishing")
	}
	// Without a host stage there is no verified certificate, so the
	// unverified-SSL weight is the only one that applies.
	if v.RiskScore < 0.2-1e-9 || v.RiskScore > 0.2+1e-9 {
		t.Errorf("risk score = %.2f, want 0.2", v.RiskScore)
	}
	if v.RiskLevel != models.RiskLow {
		t.Errorf("risk level = %q, want LOW", v.RiskLevel)
	}
	if v.Confidence != v.RiskScore {
		t.Errorf("confidence = %.2f, want the risk score %.2f", v.Confidence, v.RiskScore)
	}
	if joined := strings.Join(v.Reasons, "; "); !strings.Contains(joined, "SSL certificate") {
		t.Errorf("reasons should mention the unverified certificate, got %q", joined)
	}
}

func TestAnalyzeURLValidationFailure(t *testing.T) {
	d := New(urlproc.New(50), nil)

	long := "https://example.com/" + strings.Repeat("a", 100)
	v := d.AnalyzeURL(context.Background(), long, false)

	if v.RiskLevel != models.RiskUnknown {
		t.Errorf("risk level = %q, want UNKNOWN", v.RiskLevel)
	}
	if v.Error == "" {
		t.Error("verdict should carry the validation error")
	}
	if v.IsPhishing {
		t.Error("failed validation must not flag phishing")
	}
	if v.URL != long {
		t.Errorf("verdict should echo the submitted URL")
	}
}

func TestAnalyzeURLIntelMatchShortCircuits(t *testing.T) {
	target := "http://evil.example.com/login"

	checker := intel.NewChecker(time.Minute, telemetry.NewRegistry(),
		&stubSource{name: "OpenPhish", malicious: map[string]bool{target: true}},
	)
	d := newTestDetector(WithIntelChecker(checker))

	v := d.AnalyzeURL(context.Background(), target, false)

	if !v.IsPhishing {
		t.Fatal("intel match should flag phishing")
	}
	if v.RiskScore != 0.95 {
		t.Errorf("risk score = %.2f, want 0.95", v.RiskScore)
	}
	if v.RiskLevel != models.RiskHigh {
		t.Errorf("risk level = %q, want HIGH", v.RiskLevel)
	}
	if len(v.ThreatIntelMatches) != 1 || v.ThreatIntelMatches[0] != "OpenPhish" {
		t.Errorf("threat intel matches = %v, want [OpenPhish]", v.ThreatIntelMatches)
	}
	if len(v.Reasons) != 1 || !strings.Contains(v.Reasons[0], "OpenPhish") {
		t.Errorf("reasons = %v, want one intel reason naming the source", v.Reasons)
	}
}

func TestAnalyzeURLTrainedModel(t *testing.T) {
	samples := make([]features.Vector, 0, 40)
	labels := make([]int, 0, 40)
	for i := 0; i < 40; i++ {
		v := features.Vector{}
		if i%2 == 0 {
			v.Set("lexical_url_length", 120+float64(i))
			labels = append(labels, 1)
		} else {
			v.Set("lexical_url_length", 20+float64(i))
			labels = append(labels, 0)
		}
		samples = append(samples, v)
	}

	model := classifier.New(classifier.KindLogistic)
	if _, err := model.Train(samples, labels); err != nil {
		t.Fatalf("Train: %v", err)
	}

	d := New(urlproc.New(urlproc.DefaultMaxLength), model)

	long := "https://example.com/" + strings.Repeat("x", 130)
	short := "https://example.com/a"

	vLong := d.AnalyzeURL(context.Background(), long, false)
	vShort := d.AnalyzeURL(context.Background(), short, false)

	if vLong.RiskScore <= vShort.RiskScore {
		t.Errorf("long URL score %.3f should exceed short URL score %.3f",
			vLong.RiskScore, vShort.RiskScore)
	}
	if !vLong.IsPhishing {
		t.Errorf("long URL score %.3f should flag phishing", vLong.RiskScore)
	}
	if vShort.IsPhishing {
		t.Errorf("short URL score %.3f should not flag phishing", vShort.RiskScore)
	}
	if vShort.Confidence != vShort.RiskScore {
		t.Errorf("confidence = %.3f, want the model probability %.3f",
			vShort.Confidence, vShort.RiskScore)
	}
}

func TestAnalyzeURLIdempotent(t *testing.T) {
	d := newTestDetector()
	url := "http://paypal-verify.example.net/login"

	first := d.AnalyzeURL(context.Background(), url, false)
	second := d.AnalyzeURL(context.Background(), url, false)

	if first.RiskScore != second.RiskScore {
		t.Errorf("scores differ across runs: %.3f vs %.3f", first.RiskScore, second.RiskScore)
	}
	if first.RiskLevel != second.RiskLevel {
		t.Errorf("levels differ across runs: %q vs %q", first.RiskLevel, second.RiskLevel)
	}
}

func TestAnalyzeBatchPreservesOrder(t *testing.T) {
	d := newTestDetector(WithMaxConcurrent(3))

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://site-%d.example.com/", i)
	}

	verdicts, err := d.AnalyzeBatch(context.Background(), urls, false)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(verdicts) != len(urls) {
		t.Fatalf("got %d verdicts, want %d", len(verdicts), len(urls))
	}
	for i, v := range verdicts {
		if v == nil {
			t.Fatalf("verdict %d is nil", i)
		}
		if v.URL != urls[i] {
			t.Errorf("verdict %d is for %q, want %q", i, v.URL, urls[i])
		}
	}
}

func TestAnalyzeBatchLimit(t *testing.T) {
	d := newTestDetector(WithBatchLimit(5))

	urls := make([]string, 6)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://site-%d.example.com/", i)
	}

	if _, err := d.AnalyzeBatch(context.Background(), urls, false); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("err = %v, want ErrBatchTooLarge", err)
	}

	if _, err := d.AnalyzeBatch(context.Background(), urls[:5], false); err != nil {
		t.Errorf("batch at the limit should succeed, got %v", err)
	}
}

func TestGenerateReasons(t *testing.T) {
	d := newTestDetector()

	v := d.AnalyzeURL(context.Background(),
		"http://a.b.c.d.login-secure.example.com/@verify", false)

	joined := strings.Join(v.Reasons, "; ")
	if !strings.Contains(joined, "subdomains") {
		t.Errorf("reasons should mention subdomains, got %q", joined)
	}
	if !strings.Contains(joined, "@ symbol") {
		t.Errorf("reasons should mention the @ symbol, got %q", joined)
	}
}
