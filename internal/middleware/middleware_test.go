// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"phishdetect/internal/middleware"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	limiter := middleware.NewInMemoryRateLimiter()

	for i := 0; i < middleware.RateLimitMaxRequests; i++ {
		if result := limiter.CheckAndRecord("10.0.0.1"); !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	limiter := middleware.NewInMemoryRateLimiter()

	for i := 0; i < middleware.RateLimitMaxRequests; i++ {
		limiter.CheckAndRecord("10.0.0.2")
	}

	result := limiter.CheckAndRecord("10.0.0.2")
	if result.Allowed {
		t.Fatal("request over the limit should be blocked")
	}
	if result.WaitSeconds < 1 {
		t.Errorf("wait seconds = %d, want >= 1", result.WaitSeconds)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	limiter := middleware.NewInMemoryRateLimiter()

	for i := 0; i < middleware.RateLimitMaxRequests; i++ {
		limiter.CheckAndRecord("10.0.0.3")
	}

	if result := limiter.CheckAndRecord("10.0.0.4"); !result.Allowed {
		t.Error("a different client should not be affected")
	}
}

func TestAnalyzeRateLimitMiddleware(t *testing.T) {
	limiter := middleware.NewInMemoryRateLimiter()

	router := gin.New()
	router.Use(middleware.AnalyzeRateLimit(limiter))
	router.POST("/check", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	var lastCode int
	for i := 0; i < middleware.RateLimitMaxRequests+1; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/check", strings.NewReader("{}"))
		router.ServeHTTP(w, req)
		lastCode = w.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 after the limit, got %d", lastCode)
	}

	// GET requests bypass the limiter even when the window is exhausted.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for GET, got %d", w.Code)
	}
}

func TestRecoveryReturnsJSON(t *testing.T) {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/panic", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("expected JSON response, got %q", ct)
	}
}
