// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package intel cross-references URLs against external reputation
// sources. Each source lookup is cached by URL digest with a TTL; a
// source failure contributes that source's negative default and never
// blocks the others.
package intel

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"phishdetect/internal/telemetry"
)

const sourceWeight = 0.4

// SourceResult is one source's view of a URL.
type SourceResult struct {
	IsMalicious bool              `json:"is_malicious"`
	Detail      map[string]string `json:"detail,omitempty"`
}

// Result aggregates every enabled source for one URL.
type Result struct {
	IsMalicious bool                    `json:"is_malicious"`
	Sources     []string                `json:"threat_sources"`
	Score       float64                 `json:"threat_score"`
	Details     map[string]SourceResult `json:"details"`
}

// Source wraps one external reputation API or feed.
type Source interface {
	Name() string
	Check(ctx context.Context, url string) (SourceResult, error)
}

type Checker struct {
	sources  []Source
	cache    *telemetry.TTLCache[SourceResult]
	registry *telemetry.Registry
}

func NewChecker(ttl time.Duration, registry *telemetry.Registry, sources ...Source) *Checker {
	return &Checker{
		sources:  sources,
		cache:    telemetry.NewTTLCache[SourceResult]("intel", 10000, ttl),
		registry: registry,
	}
}

// CheckAll queries every configured source in order. The aggregate is
// malicious iff any source matched; the aggregate score is
// min(1.0, 0.4 x matching sources).
func (c *Checker) CheckAll(ctx context.Context, url string) Result {
	result := Result{Details: make(map[string]SourceResult)}

	for _, src := range c.sources {
		sr := c.checkOne(ctx, src, url)
		if sr.IsMalicious {
			result.IsMalicious = true
			result.Sources = append(result.Sources, src.Name())
			result.Details[src.Name()] = sr
		}
	}

	if n := len(result.Sources); n > 0 {
		result.Score = float64(n) * sourceWeight
		if result.Score > 1.0 {
			result.Score = 1.0
		}
	}

	return result
}

// FlushCache invalidates every cached source result.
func (c *Checker) FlushCache() {
	c.cache.Flush()
}

// CacheStats exposes the lookup cache counters for health reporting.
func (c *Checker) CacheStats() telemetry.CacheStats {
	return c.cache.Stats()
}

// SourceNames lists the configured sources in check order.
func (c *Checker) SourceNames() []string {
	names := make([]string, len(c.sources))
	for i, src := range c.sources {
		names[i] = src.Name()
	}
	return names
}

func (c *Checker) checkOne(ctx context.Context, src Source, url string) SourceResult {
	key := cacheKey(src.Name(), url)
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	start := time.Now()
	sr, err := src.Check(ctx, url)
	if err != nil {
		// Negative default; deliberately not cached so the next analysis
		// retries the source.
		slog.Warn("Threat intel source failed", "source", src.Name(), "error", err)
		if c.registry != nil {
			c.registry.RecordFailure(src.Name(), err)
		}
		return SourceResult{}
	}

	if c.registry != nil {
		c.registry.RecordSuccess(src.Name(), time.Since(start))
	}
	c.cache.Set(key, sr)
	return sr
}

func cacheKey(sourceName, url string) string {
	return fmt.Sprintf("%s_%x", sourceName, sha256.Sum256([]byte(url)))
}
