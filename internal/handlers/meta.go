// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"phishdetect/internal/classifier"
	"phishdetect/internal/config"
	"phishdetect/internal/db"
	"phishdetect/internal/intel"
	"phishdetect/internal/telemetry"
)

const topImportanceCount = 20

// MetaHandler serves the informational endpoints: configured sources,
// model summary, and scan history.
type MetaHandler struct {
	Config   *config.Config
	Intel    *intel.Checker
	Registry *telemetry.Registry
	Model    *classifier.Classifier
	DB       *db.Database
}

func NewMetaHandler(cfg *config.Config, checker *intel.Checker, registry *telemetry.Registry, model *classifier.Classifier, database *db.Database) *MetaHandler {
	return &MetaHandler{Config: cfg, Intel: checker, Registry: registry, Model: model, DB: database}
}

// Sources handles GET /api/v1/sources.
func (h *MetaHandler) Sources(c *gin.Context) {
	var names []string
	if h.Intel != nil {
		names = h.Intel.SourceNames()
	}

	sources := make([]gin.H, 0, len(names))
	for _, name := range names {
		entry := gin.H{"name": name}
		if h.Registry != nil {
			st := h.Registry.Stats(name)
			entry["state"] = string(st.State)
			entry["total_requests"] = st.TotalRequests
			entry["failure_count"] = st.FailureCount
		}
		sources = append(sources, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"configured": gin.H{
			"phishtank": h.Config.PhishTank.Enabled,
			"urlhaus":   h.Config.URLHaus.Enabled,
			"openphish": h.Config.OpenPhish.Enabled,
		},
		"cache_ttl": h.Config.IntelCacheTTL.String(),
	})
}

// ModelInfo handles GET /api/v1/model.
func (h *MetaHandler) ModelInfo(c *gin.Context) {
	if h.Model == nil {
		c.JSON(http.StatusOK, gin.H{"trained": false, "kind": h.Config.ModelKind})
		return
	}

	response := gin.H{
		"kind":    string(h.Model.Kind()),
		"trained": h.Model.Trained(),
	}
	if h.Model.Trained() {
		response["metrics"] = h.Model.Metrics()
		response["feature_count"] = len(h.Model.FeatureNames())
		response["top_features"] = h.Model.FeatureImportance(topImportanceCount)
	}

	c.JSON(http.StatusOK, response)
}

// History handles GET /api/v1/history.
func (h *MetaHandler) History(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scan history is not enabled"})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := h.DB.RecentScans(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scan history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(records),
		"scans": records,
	})
}
