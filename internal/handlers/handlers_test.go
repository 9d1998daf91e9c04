// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"phishdetect/internal/detector"
	"phishdetect/internal/handlers"
	"phishdetect/internal/urlproc"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(opts ...detector.Option) *gin.Engine {
	d := detector.New(urlproc.New(urlproc.DefaultMaxLength), nil, opts...)
	h := handlers.NewAnalyzeHandler(d, nil)

	router := gin.New()
	router.POST("/api/v1/check", h.CheckURL)
	router.POST("/api/v1/batch", h.BatchCheck)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCheckURLReturnsVerdict(t *testing.T) {
	router := setupRouter()

	w := postJSON(router, "/api/v1/check", `{"url": "http://192.168.1.1/amazon/signin/verify-account"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var verdict struct {
		URL        string   `json:"url"`
		IsPhishing bool     `json:"is_phishing"`
		RiskScore  float64  `json:"risk_score"`
		RiskLevel  string   `json:"risk_level"`
		Reasons    []string `json:"reasons"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if !verdict.IsPhishing {
		t.Error("expected phishing verdict")
	}
	if verdict.RiskLevel != "HIGH" {
		t.Errorf("risk level = %q, want HIGH", verdict.RiskLevel)
	}
	if len(verdict.Reasons) == 0 {
		t.Error("expected at least one reason")
	}
}

func TestCheckURLRejectsMissingBody(t *testing.T) {
	router := setupRouter()

	if w := postJSON(router, "/api/v1/check", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing url, got %d", w.Code)
	}
	if w := postJSON(router, "/api/v1/check", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}
}

func TestCheckURLInvalidURLStillReturns200(t *testing.T) {
	router := setupRouter()

	w := postJSON(router, "/api/v1/check", `{"url": "ftp://example.com/file"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var verdict struct {
		RiskLevel string `json:"risk_level"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if verdict.RiskLevel != "UNKNOWN" {
		t.Errorf("risk level = %q, want UNKNOWN", verdict.RiskLevel)
	}
	if verdict.Error == "" {
		t.Error("expected the validation error in the verdict")
	}
}

func TestBatchCheck(t *testing.T) {
	router := setupRouter()

	w := postJSON(router, "/api/v1/batch",
		`{"urls": ["https://example.com/", "http://192.168.1.1/login"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got count=%d len=%d", resp.Count, len(resp.Results))
	}
	if resp.Results[0].URL != "https://example.com/" {
		t.Errorf("results out of order: %q first", resp.Results[0].URL)
	}
}

func TestBatchCheckOverLimit(t *testing.T) {
	router := setupRouter(detector.WithBatchLimit(3))

	urls := make([]string, 4)
	for i := range urls {
		urls[i] = fmt.Sprintf(`"https://site-%d.example.com/"`, i)
	}
	body := `{"urls": [` + strings.Join(urls, ",") + `]}`

	w := postJSON(router, "/api/v1/batch", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 over the batch limit, got %d", w.Code)
	}
}

func TestBatchCheckEmpty(t *testing.T) {
	router := setupRouter()

	if w := postJSON(router, "/api/v1/batch", `{"urls": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", w.Code)
	}
}
