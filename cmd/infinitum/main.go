package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/config"
	"github.com/infinitum-cloud/infinitum/internal/db"
	dbMemory "github.com/infinitum-cloud/infinitum/internal/db/memory"
	dbRedis "github.com/infinitum-cloud/infinitum/internal/db/redis"
	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/retry"
	logpkg "github.com/infinitum-cloud/infinitum/internal/logger"
	"github.com/infinitum-cloud/infinitum/internal/metrics"
	"github.com/infinitum-cloud/infinitum/internal/repository/embcache"
	historyrepo "github.com/infinitum-cloud/infinitum/internal/repository/history"
	chiTransport "github.com/infinitum-cloud/infinitum/internal/transport/chi"
	openaiTransport "github.com/infinitum-cloud/infinitum/internal/transport/openai"
	"github.com/infinitum-cloud/infinitum/internal/transport/serp"
	"github.com/infinitum-cloud/infinitum/internal/transport/vectorindex"
	chatuc "github.com/infinitum-cloud/infinitum/internal/usecase/chat"
	curationuc "github.com/infinitum-cloud/infinitum/internal/usecase/curation"
	healthuc "github.com/infinitum-cloud/infinitum/internal/usecase/health"
	intentuc "github.com/infinitum-cloud/infinitum/internal/usecase/intent"
	packagesuc "github.com/infinitum-cloud/infinitum/internal/usecase/packages"
	retrievaluc "github.com/infinitum-cloud/infinitum/internal/usecase/retrieval"
	"github.com/infinitum-cloud/infinitum/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting infinitum API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create key-value store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
	case "memory":
		store = dbMemory.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	policy, err := retry.NewPolicy(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.BaseBackoffMS)*time.Millisecond,
		time.Duration(cfg.Retry.CallTimeoutSec)*time.Second,
	)
	if err != nil {
		logger.Fatal("Invalid retry configuration", zap.Error(err))
	}

	// Build the embedder chain — composition root
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Policy:     policy,
		Logger:     logger,
	})
	var embedder domain.Embedder = embcache.New(
		baseEmbedder, store, cfg.Embedding.Model,
		time.Duration(cfg.Cache.EmbeddingTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	llm := openaiTransport.NewLLM(&openaiTransport.LLMConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Provider:    "openai",
		Temperature: float32(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
		Policy:      policy,
		Logger:      logger,
	})

	vectorClient := vectorindex.NewClient(&vectorindex.Config{
		BaseURL:   cfg.VectorIndex.BaseURL,
		APIKey:    cfg.VectorIndex.APIKey,
		Namespace: cfg.VectorIndex.Namespace,
		Policy:    policy,
		Logger:    logger,
	})
	keywordClient := serp.NewClient(&serp.Config{
		BaseURL:           cfg.KeywordSearch.BaseURL,
		APIKey:            cfg.KeywordSearch.APIKey,
		RequestsPerSecond: cfg.KeywordSearch.RequestsPerSecond,
		Policy:            policy,
		Logger:            logger,
	})

	// Repositories
	historyRepo := historyrepo.New(store, time.Duration(cfg.Cache.HistoryTTLSec)*time.Second, logger)

	// Use case services
	retrievalSvc := retrievaluc.New(
		embedder, vectorClient, keywordClient,
		store, time.Duration(cfg.Cache.ResultTTLSec)*time.Second,
		logger,
	)
	intentSvc := intentuc.New(llm, logger)
	curationSvc := curationuc.New(llm, logger)
	chatSvc := chatuc.New(intentSvc, retrievalSvc, curationSvc, historyRepo, logger)
	packagesSvc := packagesuc.New(store, time.Duration(cfg.Cache.PackageTTLSec)*time.Second, logger)

	healthSvc := healthuc.New(store, map[string]healthuc.Checker{
		"embedding":      baseEmbedder,
		"llm":            llm,
		"vector_index":   vectorClient,
		"keyword_search": keywordClient,
	})

	// Create chi server
	server := chiTransport.NewServer(
		chatSvc, historyRepo, packagesSvc, healthSvc,
		chiTransport.NewAuthenticator(cfg.Auth.JWTSecret, logger),
		chiTransport.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		logger,
	).WithSearchDefaults(chatuc.Options{
		VectorK:        cfg.Search.VectorK,
		KeywordK:       cfg.Search.KeywordK,
		SemanticWeight: cfg.Search.SemanticWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
	})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
