package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"phishdetect/internal/db"
	"phishdetect/internal/intel"
	"phishdetect/internal/telemetry"
)

type HealthHandler struct {
	DB        *db.Database
	Intel     *intel.Checker
	Registry  *telemetry.Registry
	StartTime time.Time
	Version   string
}

func NewHealthHandler(database *db.Database, checker *intel.Checker, registry *telemetry.Registry, version string) *HealthHandler {
	return &HealthHandler{
		DB:        database,
		Intel:     checker,
		Registry:  registry,
		StartTime: time.Now(),
		Version:   version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := gin.H{
		"status":  "ok",
		"runtime": "go",
		"version": h.Version,
		"uptime":  time.Since(h.StartTime).String(),
		"memory": gin.H{
			"alloc_mb":       memStats.Alloc / 1024 / 1024,
			"sys_mb":         memStats.Sys / 1024 / 1024,
			"num_goroutines": runtime.NumGoroutine(),
		},
	}

	if h.DB != nil {
		dbStatus := "healthy"
		if err := h.DB.HealthCheck(c.Request.Context()); err != nil {
			dbStatus = "unhealthy: " + err.Error()
		}
		response["database"] = gin.H{"status": dbStatus}
	} else {
		response["database"] = gin.H{"status": "disabled"}
	}

	if h.Registry != nil {
		sourceStats := h.Registry.AllStats()

		sources := make([]gin.H, 0, len(sourceStats))
		for _, ss := range sourceStats {
			s := gin.H{
				"name":                 ss.Name,
				"state":                string(ss.State),
				"total_requests":       ss.TotalRequests,
				"success_count":        ss.SuccessCount,
				"failure_count":        ss.FailureCount,
				"consecutive_failures": ss.ConsecFailures,
				"avg_latency_ms":       ss.AvgLatencyMs,
			}
			if ss.LastError != "" {
				s["last_error"] = ss.LastError
			}
			if ss.LastErrorTime != nil {
				s["last_error_time"] = ss.LastErrorTime.Format(time.RFC3339)
			}
			if ss.LastSuccessTime != nil {
				s["last_success_time"] = ss.LastSuccessTime.Format(time.RFC3339)
			}
			sources = append(sources, s)
		}
		response["intel_sources"] = sources

		overallState := telemetry.Healthy
		for _, ss := range sourceStats {
			if ss.State == telemetry.Unhealthy {
				overallState = telemetry.Unhealthy
				break
			}
			if ss.State == telemetry.Degraded {
				overallState = telemetry.Degraded
			}
		}
		response["overall_source_health"] = string(overallState)
	}

	if h.Intel != nil {
		cs := h.Intel.CacheStats()
		response["caches"] = []gin.H{{
			"name":     cs.Name,
			"size":     cs.Size,
			"max_size": cs.MaxSize,
			"hits":     cs.Hits,
			"misses":   cs.Misses,
			"hit_rate": cs.HitRate,
		}}
	}

	c.JSON(http.StatusOK, response)
}
