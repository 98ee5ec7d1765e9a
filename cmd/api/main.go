// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/anzaso/inkwell/internal/api"
	"github.com/anzaso/inkwell/internal/avatar"
	"github.com/anzaso/inkwell/internal/config"
	"github.com/anzaso/inkwell/internal/db"
	"github.com/anzaso/inkwell/internal/health"
	"github.com/anzaso/inkwell/internal/middleware"
	"github.com/anzaso/inkwell/internal/search"
	"github.com/anzaso/inkwell/internal/tracing"
)

const serviceName = "inkwell-api"

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Inkwell API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Redis is optional: without it the count cache is disabled and rate
	// limiting falls back to per-instance in-memory windows.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, continuing without it", "error", err)
		}
	}

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()

	searchMetrics := search.NewMetrics()
	if err := searchMetrics.Register(registry); err != nil {
		logger.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}
	httpMetrics := middleware.NewHTTPMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}

	var signer avatar.Signer
	if cfg.AvatarSigningConfigured() {
		signer, err = avatar.NewS3Signer(avatar.Config{
			BucketName:       cfg.R2BucketName,
			AccessKeyID:      cfg.R2AccessKeyID,
			SecretAccessKey:  cfg.R2SecretAccessKey,
			Endpoint:         cfg.R2Endpoint,
			URLExpiryMinutes: cfg.AvatarURLExpiryMins,
		})
		if err != nil {
			logger.Error("avatar signer setup failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("avatar signing not configured, serving stored references")
		signer = avatar.Passthrough{}
	}

	var countCache *search.CountCache
	if redisClient != nil {
		countCache = search.NewCountCache(redisClient,
			time.Duration(cfg.SearchCountCacheTTLSec)*time.Second, logger)
	}

	engine := search.NewPostgresEngine(database, search.Deps{
		Signer:           signer,
		Counts:           countCache,
		Metrics:          searchMetrics,
		Logger:           logger,
		SubSearchTimeout: time.Duration(cfg.SearchSubTimeoutMS) * time.Millisecond,
	})

	var limitStore middleware.RateLimitStore
	if redisClient != nil {
		limitStore = middleware.NewRedisRateLimitStore(redisClient)
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		limitStore = store
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
	}
	searchLimit := middleware.DefaultSearchLimit()
	if cfg.SearchRateLimitPerMinute > 0 {
		searchLimit = middleware.RateLimitConfig{
			RequestsPerWindow: cfg.SearchRateLimitPerMinute,
			WindowDuration:    time.Minute,
		}
	}

	searchHandlers := api.NewSearchHandlers(engine, logger)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    health.NewDBChecker(database),
		RedisChecker: optionalRedisChecker(redisClient),
	})

	mux := http.NewServeMux()
	mux.Handle("/search",
		middleware.RateLimiter(limitStore, searchLimit, middleware.IPKeyFunc())(
			http.HandlerFunc(searchHandlers.Search)))
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"inkwell-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware chain, outermost first: RequestID -> Tracing -> Metrics -> Logging -> CORS
	var handler http.Handler = mux
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: strings.Split(origins, ","),
			MaxAge:         600,
		})(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = httpMetrics.Instrument(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

// optionalRedisChecker returns a health checker only when Redis is configured.
func optionalRedisChecker(client *redis.Client) api.HealthChecker {
	if client == nil {
		return nil
	}
	return health.NewRedisChecker(client)
}
