// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RiskLevel is derived deterministically from a numeric risk score.
// UNKNOWN is reserved for analyses that failed validation.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "SAFE"
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskUnknown RiskLevel = "UNKNOWN"
)

// Verdict is the result of analyzing one URL.
type Verdict struct {
	URL                string             `json:"url"`
	IsPhishing         bool               `json:"is_phishing"`
	RiskScore          float64            `json:"risk_score"`
	RiskLevel          RiskLevel          `json:"risk_level"`
	Confidence         float64            `json:"confidence"`
	Features           map[string]float64 `json:"features"`
	Reasons            []string           `json:"reasons"`
	ThreatIntelMatches []string           `json:"threat_intel_matches"`
	Error              string             `json:"error,omitempty"`
}

// ScanRecord is one persisted analysis, stored when history is enabled.
type ScanRecord struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	URL        string          `json:"url" db:"url"`
	IsPhishing bool            `json:"is_phishing" db:"is_phishing"`
	RiskScore  float64         `json:"risk_score" db:"risk_score"`
	RiskLevel  string          `json:"risk_level" db:"risk_level"`
	Verdict    json.RawMessage `json:"verdict" db:"verdict"`
	DurationS  float64         `json:"duration_s" db:"duration_s"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// TrainMetrics reports hold-out and cross-validated quality after training.
type TrainMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	ROCAUC    float64 `json:"roc_auc"`
	CVF1Mean  float64 `json:"cv_f1_mean"`
	CVF1Std   float64 `json:"cv_f1_std"`
}
