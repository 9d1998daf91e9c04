// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package intel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"phishdetect/internal/webclient"
)

const (
	phishTankAPIURL = "https://checkurl.phishtank.com/checkurl/"
	urlHausAPIURL   = "https://urlhaus-api.abuse.ch/v1/url/"

	openPhishFeedURL = "https://openphish.com/feed.txt"
	openPhishFeedTTL = 12 * time.Hour

	maxAPIResponseBytes  = 1 << 20
	maxFeedResponseBytes = 16 << 20
)

// PhishTankSource queries the PhishTank checkurl API.
type PhishTankSource struct {
	client *webclient.Client
	apiKey string
}

func NewPhishTankSource(client *webclient.Client, apiKey string) *PhishTankSource {
	return &PhishTankSource{client: client, apiKey: apiKey}
}

func (s *PhishTankSource) Name() string { return "PhishTank" }

func (s *PhishTankSource) Check(ctx context.Context, rawURL string) (SourceResult, error) {
	form := url.Values{
		"url":     {rawURL},
		"format":  {"json"},
		"app_key": {s.apiKey},
	}

	resp, err := s.client.PostForm(ctx, phishTankAPIURL, form)
	if err != nil {
		return SourceResult{}, fmt.Errorf("phishtank request: %w", err)
	}

	body, err := s.client.ReadBody(resp, maxAPIResponseBytes)
	if err != nil {
		return SourceResult{}, fmt.Errorf("phishtank body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return SourceResult{}, fmt.Errorf("phishtank status %d", resp.StatusCode)
	}

	var payload struct {
		Results struct {
			InDatabase     bool   `json:"in_database"`
			Verified       bool   `json:"verified"`
			SubmissionTime string `json:"submission_time"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return SourceResult{}, fmt.Errorf("phishtank decode: %w", err)
	}

	sr := SourceResult{IsMalicious: payload.Results.InDatabase}
	if sr.IsMalicious {
		sr.Detail = map[string]string{
			"verified":        fmt.Sprintf("%t", payload.Results.Verified),
			"submission_time": payload.Results.SubmissionTime,
		}
	}
	return sr, nil
}

// URLHausSource queries the abuse.ch URLhaus lookup API.
type URLHausSource struct {
	client *webclient.Client
	apiURL string
}

func NewURLHausSource(client *webclient.Client) *URLHausSource {
	return NewURLHausSourceAt(client, urlHausAPIURL)
}

// NewURLHausSourceAt points the source at a non-default endpoint.
func NewURLHausSourceAt(client *webclient.Client, apiURL string) *URLHausSource {
	return &URLHausSource{client: client, apiURL: apiURL}
}

func (s *URLHausSource) Name() string { return "URLhaus" }

func (s *URLHausSource) Check(ctx context.Context, rawURL string) (SourceResult, error) {
	resp, err := s.client.PostForm(ctx, s.apiURL, url.Values{"url": {rawURL}})
	if err != nil {
		return SourceResult{}, fmt.Errorf("urlhaus request: %w", err)
	}

	body, err := s.client.ReadBody(resp, maxAPIResponseBytes)
	if err != nil {
		return SourceResult{}, fmt.Errorf("urlhaus body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return SourceResult{}, fmt.Errorf("urlhaus status %d", resp.StatusCode)
	}

	var payload struct {
		QueryStatus string   `json:"query_status"`
		Threat      string   `json:"threat"`
		Tags        []string `json:"tags"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return SourceResult{}, fmt.Errorf("urlhaus decode: %w", err)
	}

	// query_status "ok" means the URL is in the database.
	sr := SourceResult{IsMalicious: payload.QueryStatus == "ok"}
	if sr.IsMalicious {
		sr.Detail = map[string]string{
			"threat_type": payload.Threat,
			"tags":        strings.Join(payload.Tags, ","),
		}
	}
	return sr, nil
}

// OpenPhishSource matches URLs against the OpenPhish public feed. The
// feed is downloaded at most once per feedTTL and held in memory; the
// instance owns its feed state, nothing is process-global.
type OpenPhishSource struct {
	client  *webclient.Client
	feedURL string
	feedTTL time.Duration

	mu        sync.RWMutex
	feed      map[string]bool
	fetchedAt time.Time
}

func NewOpenPhishSource(client *webclient.Client) *OpenPhishSource {
	return NewOpenPhishSourceAt(client, openPhishFeedURL)
}

// NewOpenPhishSourceAt points the source at a non-default feed URL.
func NewOpenPhishSourceAt(client *webclient.Client, feedURL string) *OpenPhishSource {
	return &OpenPhishSource{
		client:  client,
		feedURL: feedURL,
		feedTTL: openPhishFeedTTL,
	}
}

func (s *OpenPhishSource) Name() string { return "OpenPhish" }

func (s *OpenPhishSource) Check(ctx context.Context, rawURL string) (SourceResult, error) {
	feed, err := s.getFeed(ctx)
	if err != nil {
		return SourceResult{}, err
	}

	normalized := strings.TrimRight(rawURL, "/")
	if feed[rawURL] || feed[normalized] {
		return SourceResult{
			IsMalicious: true,
			Detail:      map[string]string{"feed_checked": time.Now().UTC().Format(time.RFC3339)},
		}, nil
	}
	return SourceResult{}, nil
}

func (s *OpenPhishSource) getFeed(ctx context.Context) (map[string]bool, error) {
	s.mu.RLock()
	if s.feed != nil && time.Since(s.fetchedAt) < s.feedTTL {
		defer s.mu.RUnlock()
		return s.feed, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feed != nil && time.Since(s.fetchedAt) < s.feedTTL {
		return s.feed, nil
	}

	resp, err := s.client.Get(ctx, s.feedURL)
	if err != nil {
		if s.feed != nil {
			return s.feed, nil // stale feed beats no feed
		}
		return nil, fmt.Errorf("openphish feed: %w", err)
	}

	body, err := s.client.ReadBody(resp, maxFeedResponseBytes)
	if err != nil || resp.StatusCode != http.StatusOK {
		if s.feed != nil {
			return s.feed, nil
		}
		return nil, fmt.Errorf("openphish feed status %d: %v", resp.StatusCode, err)
	}

	feed := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		feed[line] = true
		feed[strings.TrimRight(line, "/")] = true
	}

	if len(feed) > 0 {
		s.feed = feed
		s.fetchedAt = time.Now()
	}

	return s.feed, nil
}
