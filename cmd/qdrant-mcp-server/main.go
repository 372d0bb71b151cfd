package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/config"
	"github.com/ashokbr78/qdrant-mcp-server/internal/db"
	dbRedis "github.com/ashokbr78/qdrant-mcp-server/internal/db/redis"
	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
	logpkg "github.com/ashokbr78/qdrant-mcp-server/internal/logger"
	"github.com/ashokbr78/qdrant-mcp-server/internal/metrics"
	"github.com/ashokbr78/qdrant-mcp-server/internal/ratelimit"
	"github.com/ashokbr78/qdrant-mcp-server/internal/repository/embcache"
	"github.com/ashokbr78/qdrant-mcp-server/internal/repository/points"
	chiTransport "github.com/ashokbr78/qdrant-mcp-server/internal/transport/chi"
	mcpTransport "github.com/ashokbr78/qdrant-mcp-server/internal/transport/mcp"
	embeddinguc "github.com/ashokbr78/qdrant-mcp-server/internal/usecase/embedding"
	healthuc "github.com/ashokbr78/qdrant-mcp-server/internal/usecase/health"
	"github.com/ashokbr78/qdrant-mcp-server/internal/usecase/sparse"
	storeuc "github.com/ashokbr78/qdrant-mcp-server/internal/usecase/store"
	"github.com/ashokbr78/qdrant-mcp-server/internal/version"
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

	logger.Info("Starting qdrant-mcp-server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("qdrant_host", cfg.Qdrant.Host),
		zap.String("collection", cfg.Qdrant.Collection),
		zap.String("provider", cfg.Provider.Kind),
	)

	// SIGINT/SIGTERM cancel the MCP stdio loop
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Vector store client
	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		logger.Fatal("Failed to create Qdrant client", zap.Error(err))
	}
	defer func() { _ = qc.Close() }()

	// Register pipeline metrics explicitly (no init())
	metrics.Register()

	// Embedding provider
	base, err := embeddinguc.NewProvider(ctx, cfg.Provider, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding provider", zap.Error(err))
	}
	logger.Info("Embedding provider created",
		zap.String("kind", cfg.Provider.Kind),
		zap.String("model", base.ModelName()),
		zap.Int("dimensions", base.Dimensions()),
	)

	// Optional embedding cache
	embedder := domain.Embedder(base)
	var cachePinger healthuc.CachePinger
	if cfg.Cache.Enabled {
		var cacheStore db.Store
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cacheStore.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := cacheStore.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))

		kv := db.TTLKV{Store: cacheStore, TTL: time.Duration(cfg.Cache.TTLSec) * time.Second}
		embedder = embcache.New(embedder, kv, metrics.EmbeddingCacheTotal, logger)
		cachePinger = cacheStore
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, logger)

	// Points repository over the shared collection
	repo := points.New(qc, cfg.Qdrant.Collection).
		WithRetry(ratelimit.DefaultPolicy(), logger)
	if err := repo.EnsureCollection(ctx, base.Dimensions()); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	// Fusion store service
	encoder := sparse.NewEncoder().WithParams(cfg.Sparse.K1, cfg.Sparse.B, cfg.Sparse.AvgDocLen)
	storeSvc := storeuc.New(repo, embedder, encoder, cfg.Fusion.K, logger)

	// MCP server over stdio
	mcpSrv, err := mcpTransport.NewServer(mcpTransport.Config{
		Store:  storeSvc,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Failed to create MCP server", zap.Error(err))
	}

	// Operational HTTP server: health + metrics
	healthSvc := healthuc.New(
		&storeHealthChecker{client: qc},
		newEmbeddingHealthChecker(base),
		cachePinger,
	)
	opsServer := chiTransport.NewServer(healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	opsServer.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Serve MCP until the client disconnects or a signal arrives
	mcpErr := make(chan error, 1)
	go func() {
		logger.Info("Serving MCP over stdio")
		mcpErr <- mcpSrv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-mcpErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("MCP server error", zap.Error(err))
		} else {
			logger.Info("MCP client disconnected")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// storeHealthChecker wraps the Qdrant client to implement health.StoreChecker.
type storeHealthChecker struct {
	client *qdrant.Client
}

func (h *storeHealthChecker) HealthCheck(ctx context.Context) error {
	if _, err := h.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("vector store health check: %w", err)
	}
	return nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
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
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

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
			)
		})
	}
}
