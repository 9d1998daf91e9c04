package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"phishdetect/internal/classifier"
	"phishdetect/internal/config"
	"phishdetect/internal/db"
	"phishdetect/internal/detector"
	"phishdetect/internal/dnsclient"
	"phishdetect/internal/features"
	"phishdetect/internal/handlers"
	"phishdetect/internal/intel"
	"phishdetect/internal/middleware"
	"phishdetect/internal/telemetry"
	"phishdetect/internal/urlproc"
	"phishdetect/internal/webclient"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	var database *db.Database
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.EnsureSchema(context.Background()); err != nil {
			slog.Error("Failed to prepare database schema", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("DATABASE_URL not set, scan history disabled")
	}

	model := loadModel(cfg)
	registry := telemetry.NewRegistry()
	checker := buildIntelChecker(cfg, registry)
	det := buildDetector(cfg, model, checker)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.RequestContext())
	router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewInMemoryRateLimiter()
	slog.Info("Rate limiter initialized", "backend", "in-memory",
		"max_requests", middleware.RateLimitMaxRequests,
		"window_seconds", middleware.RateLimitWindow)

	analyzeHandler := handlers.NewAnalyzeHandler(det, database)
	healthHandler := handlers.NewHealthHandler(database, checker, registry, cfg.AppVersion)
	metaHandler := handlers.NewMetaHandler(cfg, checker, registry, model, database)

	router.GET("/health", healthHandler.HealthCheck)

	api := router.Group("/api/v1")
	api.POST("/check", middleware.AnalyzeRateLimit(rateLimiter), analyzeHandler.CheckURL)
	api.POST("/batch", middleware.AnalyzeRateLimit(rateLimiter), analyzeHandler.BatchCheck)
	api.GET("/sources", metaHandler.Sources)
	api.GET("/model", metaHandler.ModelInfo)
	api.GET("/history", metaHandler.History)

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	slog.Info("Starting URL reputation server", "address", addr, "version", cfg.AppVersion)

	if err := router.Run(addr); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}

// loadModel loads the trained model from MODEL_PATH when configured.
// Scoring falls back to the weighted rules when no model is available.
func loadModel(cfg *config.Config) *classifier.Classifier {
	if cfg.ModelPath == "" {
		slog.Info("MODEL_PATH not set, using rule-based scoring")
		return nil
	}

	model, err := classifier.Load(cfg.ModelPath)
	if err != nil {
		slog.Warn("Failed to load model, using rule-based scoring",
			"path", cfg.ModelPath, "error", err)
		return nil
	}

	slog.Info("Model loaded",
		"path", cfg.ModelPath,
		"kind", string(model.Kind()),
		"trained", model.Trained())
	return model
}

func buildIntelChecker(cfg *config.Config, registry *telemetry.Registry) *intel.Checker {
	// Keep reputation API traffic polite; the caches absorb the rest.
	client := webclient.New(
		webclient.WithTimeout(cfg.RequestTimeout),
		webclient.WithRateLimit(2),
	)

	var sources []intel.Source
	if cfg.PhishTank.Enabled {
		sources = append(sources, intel.NewPhishTankSource(client, cfg.PhishTank.APIKey))
	}
	if cfg.URLHaus.Enabled {
		sources = append(sources, intel.NewURLHausSource(client))
	}
	if cfg.OpenPhish.Enabled {
		sources = append(sources, intel.NewOpenPhishSource(client))
	}

	if len(sources) == 0 {
		slog.Info("No threat intel sources enabled")
		return nil
	}

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	slog.Info("Threat intel checker initialized", "sources", names, "cache_ttl", cfg.IntelCacheTTL)

	return intel.NewChecker(cfg.IntelCacheTTL, registry, sources...)
}

func buildDetector(cfg *config.Config, model *classifier.Classifier, checker *intel.Checker) *detector.Detector {
	opts := []detector.Option{
		detector.WithBatchLimit(cfg.BatchLimit),
		detector.WithMaxConcurrent(cfg.MaxConcurrent),
	}

	if cfg.HostEnabled {
		dns := dnsclient.New(dnsclient.WithTimeout(cfg.DNSTimeout))
		opts = append(opts, detector.WithHostExtractor(
			features.NewHostExtractor(dns, cfg.WhoisTimeout, cfg.TLSTimeout)))
	}

	if cfg.NetworkEnabled {
		client := webclient.New(
			webclient.WithTimeout(cfg.RequestTimeout),
			webclient.WithMaxRedirects(cfg.MaxRedirects),
		)
		opts = append(opts, detector.WithNetworkExtractor(
			features.NewNetworkExtractor(client, cfg.RequestTimeout)))
	}

	if checker != nil {
		opts = append(opts, detector.WithIntelChecker(checker))
	}

	return detector.New(urlproc.New(cfg.MaxURLLength), model, opts...)
}
