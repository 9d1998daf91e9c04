// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package db persists scan history in PostgreSQL. History is optional;
// the server runs without a database and simply skips persistence.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"phishdetect/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scans (
    id          UUID PRIMARY KEY,
    url         TEXT NOT NULL,
    is_phishing BOOLEAN NOT NULL,
    risk_score  DOUBLE PRECISION NOT NULL,
    risk_level  TEXT NOT NULL,
    verdict     JSONB NOT NULL,
    duration_s  DOUBLE PRECISION NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS scans_created_at_idx ON scans (created_at DESC);
`

type Database struct {
	Pool *pgxpool.Pool
}

func Connect(databaseURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 2 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected successfully")
	return &Database{Pool: pool}, nil
}

// EnsureSchema creates the scans table and index when missing.
func (d *Database) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveScan records one completed analysis.
func (d *Database) SaveScan(ctx context.Context, verdict *models.Verdict, duration time.Duration) error {
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}

	_, err = d.Pool.Exec(ctx,
		`INSERT INTO scans (id, url, is_phishing, risk_score, risk_level, verdict, duration_s)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), verdict.URL, verdict.IsPhishing, verdict.RiskScore,
		string(verdict.RiskLevel), payload, duration.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	return nil
}

// RecentScans returns the newest scans, capped at limit.
func (d *Database) RecentScans(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := d.Pool.Query(ctx,
		`SELECT id, url, is_phishing, risk_score, risk_level, verdict, duration_s, created_at
         FROM scans ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var records []models.ScanRecord
	for rows.Next() {
		var r models.ScanRecord
		if err := rows.Scan(&r.ID, &r.URL, &r.IsPhishing, &r.RiskScore,
			&r.RiskLevel, &r.Verdict, &r.DurationS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (d *Database) HealthCheck(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

func (d *Database) Close() {
	if d.Pool != nil {
		d.Pool.Close()
		slog.Info("Database connection closed")
	}
}
