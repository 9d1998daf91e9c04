// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// SourceConfig controls one threat-intelligence source.
type SourceConfig struct {
	Enabled bool
	APIKey  string
}

type Config struct {
	Port        string
	DatabaseURL string
	AppVersion  string

	MaxURLLength int

	HostEnabled    bool
	NetworkEnabled bool
	WhoisTimeout   time.Duration
	DNSTimeout     time.Duration
	RequestTimeout time.Duration
	TLSTimeout     time.Duration
	MaxRedirects   int

	ModelKind string
	ModelPath string

	IntelCacheTTL time.Duration
	PhishTank     SourceConfig
	URLHaus       SourceConfig
	OpenPhish     SourceConfig

	BatchLimit    int
	MaxConcurrent int
}

func Load() (*Config, error) {
	// A missing .env file is fine; env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           envStr("PORT", "5000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AppVersion:     "1.4.2",
		MaxURLLength:   2048,
		HostEnabled:    envBool("HOST_FEATURES_ENABLED", true),
		NetworkEnabled: envBool("NETWORK_FEATURES_ENABLED", true),
		WhoisTimeout:   envDuration("WHOIS_TIMEOUT", 5*time.Second),
		DNSTimeout:     envDuration("DNS_TIMEOUT", 3*time.Second),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 10*time.Second),
		TLSTimeout:     envDuration("TLS_TIMEOUT", 5*time.Second),
		MaxRedirects:   5,
		ModelKind:      envStr("MODEL_KIND", "ensemble"),
		ModelPath:      os.Getenv("MODEL_PATH"),
		IntelCacheTTL:  envDuration("INTEL_CACHE_TTL", time.Hour),
		PhishTank: SourceConfig{
			Enabled: envBool("PHISHTANK_ENABLED", false),
			APIKey:  os.Getenv("PHISHTANK_API_KEY"),
		},
		URLHaus: SourceConfig{
			Enabled: envBool("URLHAUS_ENABLED", true),
		},
		OpenPhish: SourceConfig{
			Enabled: envBool("OPENPHISH_ENABLED", true),
		},
		BatchLimit:    50,
		MaxConcurrent: envInt("MAX_CONCURRENT", 6),
	}

	if v := os.Getenv("MAX_URL_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_URL_LENGTH %q", v)
		}
		cfg.MaxURLLength = n
	}

	if v := os.Getenv("MAX_REDIRECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MAX_REDIRECTS %q", v)
		}
		cfg.MaxRedirects = n
	}

	switch cfg.ModelKind {
	case "logistic", "random_forest", "gradient_boost", "ensemble":
	default:
		return nil, fmt.Errorf("unknown MODEL_KIND %q", cfg.ModelKind)
	}

	if cfg.PhishTank.Enabled && cfg.PhishTank.APIKey == "" {
		return nil, fmt.Errorf("PHISHTANK_ENABLED requires PHISHTANK_API_KEY")
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
