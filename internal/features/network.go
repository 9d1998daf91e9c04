// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package features

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"phishdetect/internal/urlproc"
	"phishdetect/internal/webclient"
)

const maxResponseBytes = 2 << 20

// NetworkDetail carries non-numeric network observations alongside the
// feature vector.
type NetworkDetail struct {
	RedirectURLs []string
	FinalURL     string
	IPAddress    string
}

// NetworkExtractor observes live behavior: the redirect chain, the
// resolved address class, and one timed fetch. All three sub-measurements
// tolerate independent failure with safe defaults (status -1,
// resolved=false) and never raise past the extractor boundary.
type NetworkExtractor struct {
	client  *webclient.Client
	timeout time.Duration
}

func NewNetworkExtractor(client *webclient.Client, timeout time.Duration) *NetworkExtractor {
	return &NetworkExtractor{client: client, timeout: timeout}
}

func (e *NetworkExtractor) Extract(ctx context.Context, rawURL string, p *urlproc.ParsedURL) (Vector, *NetworkDetail) {
	v := NewVector()
	detail := &NetworkDetail{FinalURL: rawURL}

	setRedirectDefaults(v)
	setGeoDefaults(v)
	setResponseDefaults(v)

	e.extractGeo(ctx, v, detail, p.ASCIIHostname)
	e.extractResponse(ctx, v, detail, rawURL)

	return v, detail
}

// extractResponse performs the single timed fetch and derives both the
// redirect features and the response features from it.
func (e *NetworkExtractor) extractResponse(ctx context.Context, v Vector, detail *NetworkDetail, rawURL string) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, trace, err := e.client.GetTraced(fetchCtx, rawURL)
	if err != nil {
		slog.Debug("Network fetch failed", "url", rawURL, "error", err)
		return
	}
	elapsed := time.Since(start)

	body, err := e.client.ReadBody(resp, maxResponseBytes)
	if err != nil {
		slog.Debug("Network body read failed", "url", rawURL, "error", err)
		return
	}

	v.SetInt("network_response_status_code", resp.StatusCode)
	v.SetInt("network_response_time_ms", int(elapsed.Milliseconds()))
	v.SetInt("network_response_size_bytes", len(body))
	v.SetBool("network_request_success", true)

	if resp.StatusCode == 200 {
		v.SetBool("network_has_favicon", hasFavicon(body))
	}

	if len(trace.RedirectURLs) > 0 {
		v.SetBool("network_has_redirects", true)
		v.SetInt("network_redirect_count", len(trace.RedirectURLs))
		v.SetInt("network_redirect_chain_length", len(trace.RedirectURLs))
		detail.RedirectURLs = trace.RedirectURLs
		detail.FinalURL = trace.FinalURL

		originHost := hostOf(rawURL)
		finalHost := hostOf(trace.FinalURL)
		v.SetBool("network_redirect_to_different_domain", originHost != "" && finalHost != "" && originHost != finalHost)
	}
}

func (e *NetworkExtractor) extractGeo(ctx context.Context, v Vector, detail *NetworkDetail, hostname string) {
	if hostname == "" {
		return
	}

	resolveCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupHost(resolveCtx, hostname)
	if err != nil || len(addrs) == 0 {
		slog.Debug("Hostname resolution failed", "hostname", hostname, "error", err)
		return
	}

	detail.IPAddress = addrs[0]
	v.SetBool("network_ip_resolved", true)
	v.SetBool("network_ip_is_private", webclient.IsPrivateIP(addrs[0]))
}

// hasFavicon looks for a favicon link in the fetched document, falling
// back to a raw substring check for pages goquery cannot parse.
func hasFavicon(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		found := false
		doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			rel, _ := s.Attr("rel")
			if strings.Contains(strings.ToLower(rel), "icon") {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}

	return bytes.Contains(bytes.ToLower(body), []byte("favicon"))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func setRedirectDefaults(v Vector) {
	v.SetInt("network_redirect_count", 0)
	v.SetInt("network_redirect_chain_length", 0)
	v.SetBool("network_has_redirects", false)
	v.SetBool("network_redirect_to_different_domain", false)
}

func setGeoDefaults(v Vector) {
	v.SetBool("network_ip_is_private", false)
	v.SetBool("network_ip_resolved", false)
}

func setResponseDefaults(v Vector) {
	v.SetInt("network_response_status_code", -1)
	v.SetInt("network_response_time_ms", -1)
	v.SetInt("network_response_size_bytes", -1)
	v.SetBool("network_has_favicon", false)
	v.SetBool("network_request_success", false)
}
