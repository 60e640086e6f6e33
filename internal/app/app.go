// Package app is the composition root: it turns a Config into wired services
// shared by the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/config"
	"github.com/kailas-cloud/vecdesk/internal/db"
	"github.com/kailas-cloud/vecdesk/internal/db/memory"
	dbRedis "github.com/kailas-cloud/vecdesk/internal/db/redis"
	"github.com/kailas-cloud/vecdesk/internal/domain"
	"github.com/kailas-cloud/vecdesk/internal/metrics"
	collectionrepo "github.com/kailas-cloud/vecdesk/internal/repository/collection"
	"github.com/kailas-cloud/vecdesk/internal/repository/embcache"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
	recordrepo "github.com/kailas-cloud/vecdesk/internal/repository/record"
	searchrepo "github.com/kailas-cloud/vecdesk/internal/repository/search"
	chiTransport "github.com/kailas-cloud/vecdesk/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/vecdesk/internal/transport/openai"
	collectionuc "github.com/kailas-cloud/vecdesk/internal/usecase/collection"
	embeddinguc "github.com/kailas-cloud/vecdesk/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecdesk/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/vecdesk/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/vecdesk/internal/usecase/query"
)

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Provider is the raw embedding backend the client chain wraps.
type Provider interface {
	domain.Embedder
	domain.HealthChecker
}

// App holds the wired services.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Store       db.Store
	Collections *collectionuc.Service
	Ingest      *ingestuc.Service
	Query       *queryuc.Service
	Health      *healthuc.Service
}

// New opens the configured database and builds the application around the
// OpenAI-compatible embedding provider.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	provider := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: sentDimensions(cfg.Embedding),
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	return Build(cfg, store, provider, logger), nil
}

// OpenStore connects to the configured driver and waits until it answers.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case DriverRedis:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Addrs,
			Username:    cfg.Username,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: time.Duration(cfg.DialTimeoutSec) * time.Second,
		})
	case DriverMemory:
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// Build wires repositories, the embedding chain and services over store and provider.
func Build(cfg config.Config, store db.Store, provider Provider, logger *zap.Logger) *App {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()
	metrics.RegisterHTTPMetrics()

	keys := keyspace.New(cfg.Store.KeyPrefix)
	colls := collectionrepo.New(store, keys).WithIndex(collectionrepo.IndexConfig{
		Algorithm:   db.VectorAlgorithm(cfg.Store.Algorithm),
		Distance:    db.DistanceMetric(cfg.Store.Distance),
		M:           cfg.Store.HNSWM,
		EFConstruct: cfg.Store.HNSWEFConstruct,
	})
	recs := recordrepo.New(store, keys)

	var base domain.Embedder = provider
	if cfg.Embedding.Cache.Enabled {
		base = embcache.New(provider, store, keys, cfg.Embedding.Model,
			cfg.Embedding.CacheTTL(), metrics.EmbeddingCacheTotal, logger)
	}
	docEmbedder := buildEmbedder(cfg.Embedding, base, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, base, cfg.Embedding.QueryInstruction, logger)

	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Collections: collectionuc.New(colls, recs, collectionuc.Config{
			VectorDim:        cfg.Embedding.Dimensions,
			IdempotentDrop:   cfg.Store.IdempotentDrop,
			DefaultPageSize:  cfg.Store.DefaultPageSize,
			MaxPageSize:      cfg.Store.MaxPageSize,
			DefaultTextField: cfg.Store.TextField,
		}, logger),
		Ingest: ingestuc.New(colls, recs, docEmbedder, ingestuc.Config{
			Concurrency:  cfg.Ingest.Concurrency,
			MaxBatchSize: cfg.Ingest.MaxBatchSize,
		}, logger),
		Query:  queryuc.New(searchrepo.New(store, keys), colls, queryEmbedder).WithMaxTopK(cfg.Query.MaxTopK),
		Health: healthuc.New(store, provider),
	}
}

// buildEmbedder assembles the decorator chain:
// provider -> cache -> instruction prefix -> client (normalize, retry, limits) -> instrumented.
// The instruction sits inside the client so blank input is rejected before any prefix is added.
func buildEmbedder(
	cfg config.EmbeddingConfig, base domain.Embedder, instruction string, logger *zap.Logger,
) domain.Embedder {
	inner := base
	if instruction != "" {
		inner = domain.NewInstructionEmbedder(base, instruction)
	}

	client := embeddinguc.NewClient(inner, embeddinguc.ClientConfig{
		Dimensions:   cfg.Dimensions,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		Timeout:      cfg.Timeout(),
		RateLimitRPS: cfg.RateLimitRPS,
	}, logger)

	return embeddinguc.NewInstrumentedEmbedder(client, cfg.Provider, cfg.Model, logger)
}

// Handler returns the HTTP API with its middleware stack.
func (a *App) Handler() http.Handler {
	srv := chiTransport.NewServer(a.Collections, a.Ingest, a.Query, a.Health, a.Logger).
		WithDefaultTopK(a.Config.Query.DefaultTopK)
	return chiTransport.NewRouter(srv, chiTransport.RouterConfig{
		APIKeys:      a.Config.Auth.APIKeys,
		MaxBodyBytes: a.Config.HTTP.MaxBodyBytes,
	}, a.Logger)
}

// Serve runs the HTTP server until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.Config.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Handler(),
		ReadTimeout:  time.Duration(a.Config.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.Config.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(a.Config.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.Logger.Info("Server stopped gracefully")
	return nil
}

// Close releases the database connection.
func (a *App) Close() {
	a.Store.Close()
}

func sentDimensions(cfg config.EmbeddingConfig) int {
	if cfg.SendDimensions {
		return cfg.Dimensions
	}
	return 0
}
