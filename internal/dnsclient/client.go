// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package dnsclient wraps typed DNS record lookups used by the host
// feature extractor. Every query is bounded by the client timeout and a
// failure is reported to the caller, never propagated as a panic.
package dnsclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

type ResolverConfig struct {
	Name string
	Addr string
}

var DefaultResolvers = []ResolverConfig{
	{Name: "Cloudflare", Addr: "1.1.1.1:53"},
	{Name: "Google", Addr: "8.8.8.8:53"},
	{Name: "Quad9", Addr: "9.9.9.9:53"},
}

type Client struct {
	resolvers []ResolverConfig
	timeout   time.Duration
}

type Option func(*Client)

func WithResolvers(r []ResolverConfig) Option {
	return func(c *Client) { c.resolvers = r }
}

func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.timeout = t }
}

func New(opts ...Option) *Client {
	c := &Client{
		resolvers: DefaultResolvers,
		timeout:   3 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup queries one record type for a hostname, trying each configured
// resolver in order until one answers.
func (c *Client) Lookup(ctx context.Context, hostname string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), qtype)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: c.timeout}

	var lastErr error
	for _, r := range c.resolvers {
		resp, _, err := client.ExchangeContext(ctx, msg, r.Addr)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s returned rcode %s", r.Name, dns.RcodeToString[resp.Rcode])
			continue
		}
		return resp.Answer, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no resolvers configured")
	}
	return nil, lastErr
}

// LookupA returns the IPv4 addresses for a hostname.
func (c *Client) LookupA(ctx context.Context, hostname string) ([]string, error) {
	answers, err := c.Lookup(ctx, hostname, dns.TypeA)
	if err != nil {
		return nil, err
	}

	var ips []string
	for _, rr := range answers {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}

// LookupMX returns the MX target hosts for a hostname.
func (c *Client) LookupMX(ctx context.Context, hostname string) ([]string, error) {
	answers, err := c.Lookup(ctx, hostname, dns.TypeMX)
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, rr := range answers {
		if mx, ok := rr.(*dns.MX); ok {
			hosts = append(hosts, strings.TrimSuffix(mx.Mx, "."))
		}
	}
	return hosts, nil
}

// LookupNS returns the name servers for a hostname.
func (c *Client) LookupNS(ctx context.Context, hostname string) ([]string, error) {
	answers, err := c.Lookup(ctx, hostname, dns.TypeNS)
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, rr := range answers {
		if ns, ok := rr.(*dns.NS); ok {
			hosts = append(hosts, strings.TrimSuffix(ns.Ns, "."))
		}
	}
	return hosts, nil
}

// LookupTXT returns the joined TXT record bodies for a hostname.
func (c *Client) LookupTXT(ctx context.Context, hostname string) ([]string, error) {
	answers, err := c.Lookup(ctx, hostname, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var records []string
	for _, rr := range answers {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	return records, nil
}
