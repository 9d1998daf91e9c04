// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package detector orchestrates one URL analysis end to end: parse,
// extract features, cross-reference threat intelligence, score. The
// expensive extractors run concurrently; a confirmed intel match
// short-circuits the model entirely.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"phishdetect/internal/classifier"
	"phishdetect/internal/features"
	"phishdetect/internal/intel"
	"phishdetect/internal/models"
	"phishdetect/internal/urlproc"
)

// ErrBatchTooLarge is returned when a batch exceeds the configured limit.
var ErrBatchTooLarge = errors.New("detector: batch exceeds the URL limit")

const (
	defaultBatchLimit    = 50
	defaultMaxConcurrent = 6

	// score and confidence assigned on a confirmed intel match
	intelMatchScore = 0.95
)

// Detector runs the analysis pipeline. Host, network, and intel stages
// are optional; a nil stage is skipped and its features stay absent.
type Detector struct {
	pre     *urlproc.Preprocessor
	lexical *features.LexicalExtractor
	pattern *features.PatternExtractor
	host    *features.HostExtractor
	network *features.NetworkExtractor
	intel   *intel.Checker
	model   *classifier.Classifier

	batchLimit    int
	maxConcurrent int
}

// Option configures optional pipeline stages and limits.
type Option func(*Detector)

func WithHostExtractor(h *features.HostExtractor) Option {
	return func(d *Detector) { d.host = h }
}

func WithNetworkExtractor(n *features.NetworkExtractor) Option {
	return func(d *Detector) { d.network = n }
}

func WithIntelChecker(c *intel.Checker) Option {
	return func(d *Detector) { d.intel = c }
}

func WithBatchLimit(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.batchLimit = n
		}
	}
}

func WithMaxConcurrent(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxConcurrent = n
		}
	}
}

// New builds a Detector. The model may be nil or untrained; scoring
// then falls back to the weighted rules.
func New(pre *urlproc.Preprocessor, model *classifier.Classifier, opts ...Option) *Detector {
	d := &Detector{
		pre:           pre,
		lexical:       features.NewLexicalExtractor(),
		pattern:       features.NewPatternExtractor(),
		model:         model,
		batchLimit:    defaultBatchLimit,
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BatchLimit reports the maximum batch size AnalyzeBatch accepts.
func (d *Detector) BatchLimit() int { return d.batchLimit }

// AnalyzeURL analyzes one URL. Validation failures produce an UNKNOWN
// verdict carrying the error instead of failing the call. The network
// stage only runs when both the extractor is configured and
// includeNetwork is set; callers skip it for offline-only scoring.
func (d *Detector) AnalyzeURL(ctx context.Context, rawURL string, includeNetwork bool) *models.Verdict {
	start := time.Now()

	parsed, err := d.pre.Parse(rawURL)
	if err != nil {
		return &models.Verdict{
			URL:       rawURL,
			RiskLevel: models.RiskUnknown,
			Features:  map[string]float64{},
			Error:     err.Error(),
		}
	}

	sanitized := parsed.Original
	patterns := d.pre.ExtractSuspiciousPatterns(sanitized)

	merged := features.NewVector()
	merged.Merge(d.lexical.Extract(sanitized, parsed))

	patternVec, _ := d.pattern.Extract(sanitized)
	merged.Merge(patternVec)

	var (
		hostVec, netVec features.Vector
		intelResult     intel.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	if d.host != nil {
		g.Go(func() error {
			hostVec, _ = d.host.Extract(gctx, parsed)
			return nil
		})
	}
	if d.network != nil && includeNetwork {
		g.Go(func() error {
			netVec, _ = d.network.Extract(gctx, sanitized, parsed)
			return nil
		})
	}
	if d.intel != nil {
		g.Go(func() error {
			intelResult = d.intel.CheckAll(gctx, sanitized)
			return nil
		})
	}
	// Stages swallow their own failures, so Wait cannot return an error.
	_ = g.Wait()

	if hostVec != nil {
		merged.Merge(hostVec)
	}
	if netVec != nil {
		merged.Merge(netVec)
	}

	verdict := &models.Verdict{
		URL:      sanitized,
		Features: merged,
	}

	if intelResult.IsMalicious {
		sources := append([]string(nil), intelResult.Sources...)
		sort.Strings(sources)

		verdict.IsPhishing = true
		verdict.RiskScore = intelMatchScore
		verdict.RiskLevel = models.RiskHigh
		verdict.Confidence = intelMatchScore
		verdict.ThreatIntelMatches = sources
		verdict.Reasons = []string{
			"URL found in threat intelligence databases: " + strings.Join(sources, ", "),
		}

		slog.Info("Threat intel match",
			"url", sanitized,
			"sources", strings.Join(sources, ","),
			"duration", time.Since(start))
		return verdict
	}

	if d.model != nil && d.model.Trained() {
		if score, err := d.model.Predict(merged); err == nil {
			verdict.RiskScore = score
			verdict.RiskLevel = classifier.RiskLevel(score)
			verdict.IsPhishing = score >= 0.5
			verdict.Confidence = score
			verdict.Reasons = generateReasons(merged, patterns, parsed)

			slog.Debug("Model verdict",
				"url", sanitized,
				"score", fmt.Sprintf("%.3f", score),
				"level", verdict.RiskLevel,
				"duration", time.Since(start))
			return verdict
		}
	}

	score := ruleBasedScore(merged, patterns)
	verdict.RiskScore = score
	verdict.RiskLevel = ruleBasedLevel(score)
	verdict.IsPhishing = score >= 0.5
	verdict.Confidence = score
	verdict.Reasons = generateReasons(merged, patterns, parsed)

	slog.Debug("Rule-based verdict",
		"url", sanitized,
		"score", fmt.Sprintf("%.3f", score),
		"level", verdict.RiskLevel,
		"duration", time.Since(start))
	return verdict
}

// AnalyzeBatch analyzes up to BatchLimit URLs concurrently and returns
// verdicts in input order.
func (d *Detector) AnalyzeBatch(ctx context.Context, urls []string, includeNetwork bool) ([]*models.Verdict, error) {
	if len(urls) > d.batchLimit {
		return nil, fmt.Errorf("%w: %d URLs, limit %d", ErrBatchTooLarge, len(urls), d.batchLimit)
	}

	verdicts := make([]*models.Verdict, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrent)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			verdicts[i] = d.AnalyzeURL(gctx, u, includeNetwork)
			return nil
		})
	}
	_ = g.Wait()

	return verdicts, nil
}
