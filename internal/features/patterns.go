// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package features

import (
	"regexp"
	"strings"
	"unicode"
)

var brandKeywords = []string{
	"paypal", "amazon", "microsoft", "google", "apple", "facebook",
	"netflix", "instagram", "twitter", "linkedin", "ebay", "alibaba",
	"bank", "chase", "wellsfargo", "citibank", "hsbc",
}

var phishingKeywords = []string{
	"verify", "account", "update", "confirm", "login", "signin",
	"secure", "suspended", "locked", "unusual", "click", "here",
	"urgent", "immediately", "expire", "password", "credential",
	"billing", "payment", "refund", "prize", "winner",
}

var suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top", ".work"}

var (
	repeatedCharRe = regexp.MustCompile(`(.)\1{2,}`)
	hexEncodingRe  = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
	doubleExtRe    = regexp.MustCompile(`\.[a-z]{2,4}\.[a-z]{2,4}$`)
)

// PatternDetail carries the matched keyword lists alongside the numeric
// vector, for explanation generation.
type PatternDetail struct {
	BrandKeywords    []string
	PhishingKeywords []string
}

// PatternExtractor matches a URL against fixed brand and phishing-lure
// keyword lists and structural obfuscation signals. Pure computation.
type PatternExtractor struct{}

func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

func (e *PatternExtractor) Extract(rawURL string) (Vector, *PatternDetail) {
	v := NewVector()
	detail := &PatternDetail{}
	lower := strings.ToLower(rawURL)

	for _, brand := range brandKeywords {
		if strings.Contains(lower, brand) {
			detail.BrandKeywords = append(detail.BrandKeywords, brand)
		}
	}
	v.SetInt("pattern_brand_keyword_count", len(detail.BrandKeywords))
	v.SetBool("pattern_has_brand_keyword", len(detail.BrandKeywords) > 0)

	for _, kw := range phishingKeywords {
		if strings.Contains(lower, kw) {
			detail.PhishingKeywords = append(detail.PhishingKeywords, kw)
		}
	}
	v.SetInt("pattern_phishing_keyword_count", len(detail.PhishingKeywords))
	v.SetBool("pattern_has_phishing_keyword", len(detail.PhishingKeywords) > 0)

	combined := make(map[string]bool)
	for _, kw := range detail.BrandKeywords {
		combined[kw] = true
	}
	for _, kw := range detail.PhishingKeywords {
		combined[kw] = true
	}
	v.SetInt("pattern_combined_suspicious_keywords", len(combined))

	v.SetBool("pattern_has_repeated_chars", repeatedCharRe.MatchString(rawURL))
	v.SetBool("pattern_has_mixed_case", rawURL != strings.ToLower(rawURL) && rawURL != strings.ToUpper(rawURL))

	hexMatches := hexEncodingRe.FindAllString(rawURL, -1)
	v.SetBool("pattern_has_hex_encoding", len(hexMatches) > 0)
	v.SetInt("pattern_hex_encoding_count", len(hexMatches))

	hasSuspiciousTLD := false
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(lower, tld) {
			hasSuspiciousTLD = true
			break
		}
	}
	v.SetBool("pattern_has_suspicious_tld", hasSuspiciousTLD)

	v.SetBool("pattern_has_double_extension", doubleExtRe.MatchString(lower))

	nonASCII := 0
	for _, r := range rawURL {
		if r > unicode.MaxASCII {
			nonASCII++
		}
	}
	v.SetBool("pattern_has_non_ascii", nonASCII > 0)
	v.SetInt("pattern_non_ascii_count", nonASCII)

	return v, detail
}
