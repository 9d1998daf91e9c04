// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package urlproc sanitizes, validates, and decomposes raw URLs before
// feature extraction. Parsing never panics on malformed input; anything
// the validator rejects surfaces as an explicit error.
package urlproc

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const DefaultMaxLength = 2048

var ipv4Re = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

// specialChars mirrors the reserved/special set counted for the
// special-character ratio signal.
const specialChars = "-_.~!*'();:@&=+$,/?#[]"

var suspiciousKeywords = []string{
	"login", "verify", "account", "update", "secure", "banking",
	"paypal", "ebay", "amazon", "signin", "confirm", "suspended",
	"locked", "unusual", "activity", "click", "here", "now",
	"urgent", "immediately", "expire", "password", "credential",
}

var shortenerDomains = map[string]bool{
	"bit.ly":      true,
	"goo.gl":      true,
	"t.co":        true,
	"tinyurl.com": true,
	"ow.ly":       true,
	"buff.ly":     true,
	"is.gd":       true,
	"tiny.cc":     true,
	"cli.gs":      true,
}

// ParsedURL is the decomposed form of one analyzed URL. It is built once
// per analysis and never mutated afterwards.
type ParsedURL struct {
	Original         string
	Scheme           string
	Hostname         string
	ASCIIHostname    string
	Port             int
	Path             string
	RawQuery         string
	Fragment         string
	Domain           string
	Subdomain        string
	Suffix           string
	RegisteredDomain string
	QueryParams      url.Values
	Username         string
	Password         string
	HasPassword      bool
}

// SuspiciousPatterns are lexical suspicion signals derived from the raw URL.
type SuspiciousPatterns struct {
	Keywords         []string
	KeywordCount     int
	IsIPAddress      bool
	HasAtSymbol      bool
	SubdomainCount   int
	IsURLShortener   bool
	HasUnicode       bool
	SpecialCharCount int
	SpecialCharRatio float64
}

type Preprocessor struct {
	maxLength int
}

func New(maxLength int) *Preprocessor {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Preprocessor{maxLength: maxLength}
}

// Sanitize normalizes a raw URL string: trims whitespace, percent-encodes
// embedded spaces, and injects a default scheme when none is present.
func (p *Preprocessor) Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, " ", "%20")

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") &&
		!strings.HasPrefix(raw, "ftp://") {
		raw = "http://" + raw
	}

	return raw
}

// Validate rejects over-long URLs, non-http(s) schemes, and loopback hosts.
func (p *Preprocessor) Validate(rawURL string) error {
	if len(rawURL) > p.maxLength {
		return fmt.Errorf("URL exceeds maximum length of %d", p.maxLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("invalid URL format")
	}

	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return fmt.Errorf("localhost URLs not allowed")
	}

	return nil
}

// Parse sanitizes, validates, and decomposes a raw URL.
func (p *Preprocessor) Parse(raw string) (*ParsedURL, error) {
	sanitized := p.Sanitize(raw)

	if err := p.Validate(sanitized); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	u, err := url.Parse(sanitized)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	host := u.Hostname()
	asciiHost, err := idna.ToASCII(host)
	if err != nil {
		asciiHost = host
	}

	port := 0
	if ps := u.Port(); ps != "" {
		port, _ = strconv.Atoi(ps)
	}

	parsed := &ParsedURL{
		Original:      sanitized,
		Scheme:        u.Scheme,
		Hostname:      host,
		ASCIIHostname: asciiHost,
		Port:          port,
		Path:          u.Path,
		RawQuery:      u.RawQuery,
		Fragment:      u.Fragment,
		QueryParams:   u.Query(),
	}

	if u.User != nil {
		parsed.Username = u.User.Username()
		parsed.Password, parsed.HasPassword = u.User.Password()
	}

	parsed.Suffix, _ = publicsuffix.PublicSuffix(asciiHost)
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(asciiHost); err == nil {
		parsed.RegisteredDomain = etld1
		parsed.Domain = strings.TrimSuffix(etld1, "."+parsed.Suffix)
		if rest := strings.TrimSuffix(asciiHost, etld1); rest != "" {
			parsed.Subdomain = strings.TrimSuffix(rest, ".")
		}
	}

	return parsed, nil
}

// ExtractSuspiciousPatterns derives lexical suspicion signals from a URL.
// It tolerates malformed input: signals that need a parsed host simply
// stay at their zero value.
func (p *Preprocessor) ExtractSuspiciousPatterns(raw string) *SuspiciousPatterns {
	sanitized := p.Sanitize(raw)
	lower := strings.ToLower(sanitized)

	out := &SuspiciousPatterns{}

	for _, kw := range suspiciousKeywords {
		if strings.Contains(lower, kw) {
			out.Keywords = append(out.Keywords, kw)
		}
	}
	out.KeywordCount = len(out.Keywords)

	out.HasAtSymbol = strings.Contains(sanitized, "@")

	for _, r := range sanitized {
		if r > unicode.MaxASCII {
			out.HasUnicode = true
			break
		}
	}

	for _, r := range sanitized {
		if strings.ContainsRune(specialChars, r) {
			out.SpecialCharCount++
		}
	}
	if len(sanitized) > 0 {
		out.SpecialCharRatio = float64(out.SpecialCharCount) / float64(len(sanitized))
	}

	u, err := url.Parse(sanitized)
	if err != nil {
		return out
	}
	host := u.Hostname()

	out.IsIPAddress = IsIPLiteral(host)

	asciiHost, err := idna.ToASCII(host)
	if err != nil {
		asciiHost = host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(asciiHost); err == nil {
		out.IsURLShortener = shortenerDomains[etld1]
		if rest := strings.TrimSuffix(asciiHost, etld1); rest != "" {
			sub := strings.TrimSuffix(rest, ".")
			out.SubdomainCount = len(strings.Split(sub, "."))
		}
	}

	return out
}

// IsIPLiteral reports whether a hostname is an IPv4 or IPv6 literal.
func IsIPLiteral(hostname string) bool {
	if hostname == "" {
		return false
	}
	if ipv4Re.MatchString(hostname) {
		return true
	}
	return strings.Contains(hostname, ":")
}
