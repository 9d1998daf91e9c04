// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package features

import (
	"math"
	"strings"
	"unicode"

	"phishdetect/internal/urlproc"
)

// LexicalExtractor computes pure string-derived features. It performs no
// I/O and is deterministic for a given URL.
type LexicalExtractor struct{}

func NewLexicalExtractor() *LexicalExtractor {
	return &LexicalExtractor{}
}

func (e *LexicalExtractor) Extract(rawURL string, p *urlproc.ParsedURL) Vector {
	v := NewVector()

	v.SetInt("lexical_url_length", len(rawURL))
	v.SetInt("lexical_hostname_length", len(p.Hostname))
	v.SetInt("lexical_path_length", len(p.Path))
	v.SetInt("lexical_query_length", len(p.RawQuery))
	v.SetInt("lexical_domain_length", len(p.Domain))
	v.SetInt("lexical_subdomain_length", len(p.Subdomain))

	v.SetInt("lexical_dot_count", strings.Count(rawURL, "."))
	v.SetInt("lexical_hyphen_count", strings.Count(rawURL, "-"))
	v.SetInt("lexical_underscore_count", strings.Count(rawURL, "_"))
	v.SetInt("lexical_slash_count", strings.Count(rawURL, "/"))
	v.SetInt("lexical_question_count", strings.Count(rawURL, "?"))
	v.SetInt("lexical_equal_count", strings.Count(rawURL, "="))
	v.SetInt("lexical_at_count", strings.Count(rawURL, "@"))
	v.SetInt("lexical_ampersand_count", strings.Count(rawURL, "&"))
	v.SetInt("lexical_exclamation_count", strings.Count(rawURL, "!"))
	v.SetInt("lexical_tilde_count", strings.Count(rawURL, "~"))
	v.SetInt("lexical_percent_count", strings.Count(rawURL, "%"))
	v.SetInt("lexical_hash_count", strings.Count(rawURL, "#"))

	digits, letters := 0, 0
	for _, r := range rawURL {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}
	v.SetInt("lexical_digit_count", digits)
	v.SetInt("lexical_letter_count", letters)

	urlLen := len(rawURL)
	if urlLen == 0 {
		urlLen = 1
	}
	v.Set("lexical_digit_ratio", float64(digits)/float64(urlLen))
	v.Set("lexical_letter_ratio", float64(letters)/float64(urlLen))

	var pathTokens []string
	for _, tok := range strings.Split(p.Path, "/") {
		if tok != "" {
			pathTokens = append(pathTokens, tok)
		}
	}
	v.SetInt("lexical_path_token_count", len(pathTokens))
	if len(pathTokens) > 0 {
		total := 0
		for _, tok := range pathTokens {
			total += len(tok)
		}
		v.Set("lexical_avg_path_token_length", float64(total)/float64(len(pathTokens)))
	} else {
		v.Set("lexical_avg_path_token_length", 0)
	}

	v.SetInt("lexical_query_param_count", len(p.QueryParams))

	subdomainTokens := 0
	if p.Subdomain != "" {
		subdomainTokens = len(strings.Split(p.Subdomain, "."))
	}
	v.SetInt("lexical_subdomain_token_count", subdomainTokens)

	v.Set("lexical_url_entropy", ShannonEntropy(rawURL))
	v.Set("lexical_hostname_entropy", ShannonEntropy(p.Hostname))

	v.SetBool("lexical_has_port", p.Port != 0)
	v.SetBool("lexical_has_fragment", p.Fragment != "")
	v.SetBool("lexical_is_https", p.Scheme == "https")

	v.SetInt("lexical_max_consecutive_digits", maxConsecutive(rawURL, unicode.IsDigit))
	v.SetInt("lexical_max_consecutive_letters", maxConsecutive(rawURL, unicode.IsLetter))

	return v
}

// ShannonEntropy returns the Shannon entropy over character frequency.
// The entropy of an empty string is 0.
func ShannonEntropy(text string) float64 {
	if text == "" {
		return 0
	}

	freq := make(map[rune]int)
	n := 0
	for _, r := range text {
		freq[r]++
		n++
	}

	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / float64(n)
		entropy -= p * math.Log2(p)
	}

	return entropy
}

func maxConsecutive(text string, match func(rune) bool) int {
	maxRun, run := 0, 0
	for _, r := range text {
		if match(r) {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}
	return maxRun
}
