// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package detector

import (
	"fmt"

	"phishdetect/internal/features"
	"phishdetect/internal/models"
	"phishdetect/internal/urlproc"
)

// ruleBasedScore is the fallback scorer used when no trained model is
// available. Fixed additive weights, capped at 1.0.
func ruleBasedScore(v features.Vector, patterns *urlproc.SuspiciousPatterns) float64 {
	var score float64

	// An absent key means the host stage never ran; only a measured age
	// counts against the URL.
	if age, ok := v["host_whois_domain_age_days"]; ok && age >= 0 && age < 7 {
		score += 0.3
	}

	// No verified certificate counts against the URL whatever the
	// scheme; plain http never has one.
	if !v.Bool("host_ssl_valid") {
		score += 0.2
	}

	if kw := float64(patterns.KeywordCount) * 0.1; kw > 0 {
		if kw > 0.3 {
			kw = 0.3
		}
		score += kw
	}

	if patterns.IsIPAddress {
		score += 0.4
	}

	if v.Get("lexical_url_length") > 100 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ruleBasedLevel uses coarser thresholds than the model mapping; the
// additive weights rarely reach the model's 0.8 band.
func ruleBasedLevel(score float64) models.RiskLevel {
	switch {
	case score >= 0.7:
		return models.RiskHigh
	case score >= 0.4:
		return models.RiskMedium
	case score >= 0.2:
		return models.RiskLow
	default:
		return models.RiskSafe
	}
}

// generateReasons renders the human-readable explanation list for a
// verdict from the extracted signals.
func generateReasons(v features.Vector, patterns *urlproc.SuspiciousPatterns, p *urlproc.ParsedURL) []string {
	var reasons []string

	if age, ok := v["host_whois_domain_age_days"]; ok && age >= 0 {
		switch {
		case age < 7:
			reasons = append(reasons, "Domain was registered less than a week ago")
		case age < 30:
			reasons = append(reasons, "Domain was registered less than a month ago")
		}
	}

	if p.Scheme == "https" && !v.Bool("host_ssl_valid") {
		reasons = append(reasons, "SSL certificate is missing or invalid")
	}

	if n := patterns.KeywordCount; n > 0 {
		reasons = append(reasons, fmt.Sprintf("URL contains %d suspicious keyword(s)", n))
	}

	if patterns.IsIPAddress {
		reasons = append(reasons, "URL uses an IP address instead of a domain name")
	}

	if v.Get("lexical_url_length") > 100 {
		reasons = append(reasons, "URL is unusually long")
	}

	if patterns.SubdomainCount > 3 {
		reasons = append(reasons, "URL has an excessive number of subdomains")
	}

	if patterns.HasAtSymbol {
		reasons = append(reasons, "URL contains an @ symbol")
	}

	if v.Get("lexical_url_entropy") > 4.5 {
		reasons = append(reasons, "URL has unusually high character entropy")
	}

	if v.Bool("network_redirect_to_different_domain") {
		reasons = append(reasons, "URL redirects to a different domain")
	}

	return reasons
}
