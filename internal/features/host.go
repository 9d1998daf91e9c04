// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package features

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"phishdetect/internal/dnsclient"
	"phishdetect/internal/urlproc"
)

var privacyKeywords = []string{"privacy", "protect", "proxy", "whoisguard", "private"}

var knownCAs = []string{
	"Let's Encrypt", "DigiCert", "GeoTrust", "Comodo",
	"GlobalSign", "Symantec", "Thawte", "RapidSSL",
	"GoDaddy", "Entrust",
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// HostDetail carries non-numeric host lookup results (resolved addresses)
// alongside the feature vector.
type HostDetail struct {
	IPAddresses []string
}

// HostExtractor performs WHOIS, DNS, and TLS sub-lookups. Each sub-lookup
// is bounded by its own timeout and degrades to explicit sentinel values
// on failure: -1 for unavailable durations, false for unavailable
// booleans, 0 for counts. A failed lookup never aborts the pipeline.
type HostExtractor struct {
	whoisClient  *whois.Client
	dns          *dnsclient.Client
	whoisTimeout time.Duration
	tlsTimeout   time.Duration
}

func NewHostExtractor(dns *dnsclient.Client, whoisTimeout, tlsTimeout time.Duration) *HostExtractor {
	wc := whois.NewClient()
	wc.SetTimeout(whoisTimeout)

	return &HostExtractor{
		whoisClient:  wc,
		dns:          dns,
		whoisTimeout: whoisTimeout,
		tlsTimeout:   tlsTimeout,
	}
}

func (e *HostExtractor) Extract(ctx context.Context, p *urlproc.ParsedURL) (Vector, *HostDetail) {
	v := NewVector()
	detail := &HostDetail{}

	if p.Hostname == "" {
		setWhoisDefaults(v)
		setDNSDefaults(v)
		setTLSDefaults(v)
		return v, detail
	}

	e.extractWhois(v, p)
	e.extractDNS(ctx, v, detail, p.ASCIIHostname)

	if p.Scheme == "https" {
		port := p.Port
		if port == 0 {
			port = 443
		}
		e.extractTLS(v, p.ASCIIHostname, port)
	} else {
		setTLSDefaults(v)
	}

	return v, detail
}

func (e *HostExtractor) extractWhois(v Vector, p *urlproc.ParsedURL) {
	setWhoisDefaults(v)

	// IP-literal hosts have no registration record.
	if urlproc.IsIPLiteral(p.Hostname) {
		return
	}

	target := p.RegisteredDomain
	if target == "" {
		target = p.ASCIIHostname
	}

	raw, err := e.whoisClient.Whois(target)
	if err != nil {
		slog.Debug("WHOIS query failed", "domain", target, "error", err)
		return
	}

	info, err := whoisparser.Parse(raw)
	if err != nil || info.Domain == nil {
		slog.Debug("WHOIS parse failed", "domain", target, "error", err)
		return
	}

	now := time.Now().UTC()

	if created, ok := parseWhoisDate(info.Domain.CreatedDate); ok {
		age := now.Sub(created)
		days := int(age.Hours() / 24)
		v.SetInt("host_whois_domain_age_days", days)
		v.Set("host_whois_domain_age_months", float64(days)/30.44)
		v.SetBool("host_whois_query_success", true)
	}

	if expiry, ok := parseWhoisDate(info.Domain.ExpirationDate); ok {
		v.SetInt("host_whois_days_until_expiry", int(expiry.Sub(now).Hours()/24))
	}

	if info.Registrar != nil && info.Registrar.Name != "" {
		v.SetBool("host_whois_registrar_known", true)
		registrarLower := strings.ToLower(info.Registrar.Name)
		for _, kw := range privacyKeywords {
			if strings.Contains(registrarLower, kw) {
				v.SetBool("host_whois_privacy_protected", true)
				break
			}
		}
	}
}

func (e *HostExtractor) extractDNS(ctx context.Context, v Vector, detail *HostDetail, hostname string) {
	setDNSDefaults(v)

	if ips, err := e.dns.LookupA(ctx, hostname); err == nil {
		v.SetInt("host_dns_a_record_count", len(ips))
		v.SetBool("host_dns_query_success", true)
		detail.IPAddresses = ips
	} else {
		slog.Debug("DNS A lookup failed", "hostname", hostname, "error", err)
	}

	if hosts, err := e.dns.LookupMX(ctx, hostname); err == nil {
		v.SetInt("host_dns_mx_record_count", len(hosts))
	}

	if hosts, err := e.dns.LookupNS(ctx, hostname); err == nil {
		v.SetInt("host_dns_ns_record_count", len(hosts))
	}

	if records, err := e.dns.LookupTXT(ctx, hostname); err == nil {
		v.SetInt("host_dns_txt_record_count", len(records))
		for _, record := range records {
			body := strings.ToLower(record)
			if strings.Contains(body, "v=spf1") {
				v.SetBool("host_dns_has_spf", true)
			}
			if strings.Contains(body, "v=dmarc1") {
				v.SetBool("host_dns_has_dmarc", true)
			}
		}
	}
}

func (e *HostExtractor) extractTLS(v Vector, hostname string, port int) {
	setTLSDefaults(v)

	dialer := &net.Dialer{Timeout: e.tlsTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", fmt.Sprintf("%s:%d", hostname, port), &tls.Config{
		ServerName: hostname,
		// The certificate is inspected, not trusted; invalid chains are a
		// signal we want to observe rather than a connection error.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Debug("TLS handshake failed", "hostname", hostname, "error", err)
		return
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return
	}
	leaf := certs[0]
	now := time.Now().UTC()

	v.SetBool("host_ssl_valid", true)
	v.SetInt("host_ssl_days_until_expiry", int(leaf.NotAfter.Sub(now).Hours()/24))
	v.SetInt("host_ssl_certificate_age_days", int(now.Sub(leaf.NotBefore).Hours()/24))

	issuerCN := leaf.Issuer.CommonName
	if issuerCN != "" {
		issuerLower := strings.ToLower(issuerCN)
		for _, ca := range knownCAs {
			if strings.Contains(issuerLower, strings.ToLower(ca)) {
				v.SetBool("host_ssl_issuer_known", true)
				break
			}
		}
	}

	v.SetBool("host_ssl_self_signed", leaf.Subject.String() == leaf.Issuer.String())

	if cn := leaf.Subject.CommonName; cn != "" {
		v.SetBool("host_ssl_common_name_match", strings.Contains(cn, hostname) || strings.Contains(hostname, cn))
		v.SetBool("host_ssl_wildcard", strings.HasPrefix(cn, "*."))
	}
}

func parseWhoisDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func setWhoisDefaults(v Vector) {
	v.SetInt("host_whois_domain_age_days", -1)
	v.Set("host_whois_domain_age_months", -1)
	v.SetBool("host_whois_registrar_known", false)
	v.SetBool("host_whois_privacy_protected", false)
	v.SetInt("host_whois_days_until_expiry", -1)
	v.SetBool("host_whois_query_success", false)
}

func setDNSDefaults(v Vector) {
	v.SetInt("host_dns_a_record_count", 0)
	v.SetInt("host_dns_mx_record_count", 0)
	v.SetInt("host_dns_ns_record_count", 0)
	v.SetInt("host_dns_txt_record_count", 0)
	v.SetBool("host_dns_has_spf", false)
	v.SetBool("host_dns_has_dmarc", false)
	v.SetBool("host_dns_query_success", false)
}

func setTLSDefaults(v Vector) {
	v.SetBool("host_ssl_valid", false)
	v.SetBool("host_ssl_issuer_known", false)
	v.SetBool("host_ssl_self_signed", false)
	v.SetInt("host_ssl_days_until_expiry", -1)
	v.SetInt("host_ssl_certificate_age_days", -1)
	v.SetBool("host_ssl_common_name_match", false)
	v.SetBool("host_ssl_wildcard", false)
}
