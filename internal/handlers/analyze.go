// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package handlers wires the detection pipeline to the JSON API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"phishdetect/internal/db"
	"phishdetect/internal/detector"
	"phishdetect/internal/models"
)

type checkRequest struct {
	URL string `json:"url" binding:"required"`
	// nil means unset; live network checks default to on
	IncludeNetwork *bool `json:"include_network"`
}

type batchRequest struct {
	URLs           []string `json:"urls" binding:"required"`
	IncludeNetwork *bool    `json:"include_network"`
}

func includeNetwork(flag *bool) bool {
	return flag == nil || *flag
}

// AnalyzeHandler serves the single and batch analysis endpoints.
type AnalyzeHandler struct {
	Detector *detector.Detector
	DB       *db.Database
}

func NewAnalyzeHandler(d *detector.Detector, database *db.Database) *AnalyzeHandler {
	return &AnalyzeHandler{Detector: d, DB: database}
}

// CheckURL handles POST /api/v1/check.
func (h *AnalyzeHandler) CheckURL(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must contain a url field"})
		return
	}

	start := time.Now()
	verdict := h.Detector.AnalyzeURL(c.Request.Context(), req.URL, includeNetwork(req.IncludeNetwork))
	duration := time.Since(start)

	h.persist(c, verdict, duration)

	c.JSON(http.StatusOK, verdict)
}

// BatchCheck handles POST /api/v1/batch.
func (h *AnalyzeHandler) BatchCheck(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must contain a urls array"})
		return
	}
	if len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "urls array is empty"})
		return
	}

	start := time.Now()
	verdicts, err := h.Detector.AnalyzeBatch(c.Request.Context(), req.URLs, includeNetwork(req.IncludeNetwork))
	if err != nil {
		if errors.Is(err, detector.ErrBatchTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
				"limit": h.Detector.BatchLimit(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch analysis failed"})
		return
	}
	duration := time.Since(start)

	for _, v := range verdicts {
		h.persist(c, v, duration/time.Duration(len(verdicts)))
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(verdicts),
		"results": verdicts,
	})
}

// persist writes the verdict to scan history when a database is
// configured. History failures are logged, never surfaced.
func (h *AnalyzeHandler) persist(c *gin.Context, verdict *models.Verdict, duration time.Duration) {
	if h.DB == nil {
		return
	}
	if err := h.DB.SaveScan(c.Request.Context(), verdict, duration); err != nil {
		traceID, _ := c.Get("trace_id")
		slog.Warn("Failed to save scan history",
			"trace_id", traceID,
			"url", verdict.URL,
			"error", err)
	}
}
