// Package app assembles the retrieval stack from configuration. It is shared
// by the HTTP server and the exercisectl tool.
package app

import (
	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/embedding"
	"alcyxob/fitness-coach/internal/llm"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/repository/catalog"
	"alcyxob/fitness-coach/internal/repository/memory"
	"alcyxob/fitness-coach/internal/repository/mongo"
	"alcyxob/fitness-coach/internal/repository/postgres"
	"alcyxob/fitness-coach/internal/service"
	"alcyxob/fitness-coach/internal/storage"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// App holds the long-lived components of the process.
type App struct {
	Metrics   *metrics.Metrics
	Retrieval *service.RetrievalProvider
	Planner   service.WorkoutPlanner

	mu      sync.Mutex
	index   repository.VectorIndex
	closers []func() error
}

// New wires catalog source, embedder, retrieval provider and planner. The
// vector index store is connected on the first retrieval attempt, so an
// unreachable database fails retrieval and not the process.
func New(_ context.Context, cfg config.Config) (*App, error) {
	a := &App{Metrics: metrics.New()}

	log.Info("Initializing catalog source...")
	source, err := NewObjectSource(cfg)
	if err != nil {
		return nil, err
	}
	catalogRepo := catalog.NewJSONCatalogRepository(source, cfg.Catalog.Key)

	log.Info("Initializing embedding provider...")
	embedder, err := NewEmbedder(cfg.Embedding, a.Metrics)
	if err != nil {
		return nil, err
	}

	switch cfg.Index.Backend {
	case "", "memory", "mongo", "postgres":
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}

	opts := service.RetrievalOptions{
		BrowseLimit:      cfg.Retrieval.BrowseLimit,
		FullGymSentinels: cfg.Retrieval.FullGymSentinels,
		EquipmentAliases: cfg.Retrieval.EquipmentAliases,
		BuildBatchSize:   cfg.Embedding.BatchSize,
		BuildConcurrency: cfg.Embedding.Concurrency,
		Metrics:          a.Metrics,
	}
	a.Retrieval = service.NewRetrievalProvider(func(ctx context.Context) (service.RetrievalService, error) {
		index, err := a.vectorIndex(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return service.NewRetrievalService(ctx, catalogRepo, index, embedder, opts)
	}, cfg.Retrieval.InitTimeout)

	log.Info("Initializing workout planner...")
	chat, err := llm.NewOpenAIChatClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("chat client: %w", err)
	}
	a.Planner = service.NewWorkoutPlanner(a.Retrieval, chat, service.PlannerOptions{
		Exercises: cfg.Retrieval.PlanExercises,
		Metrics:   a.Metrics,
	})
	return a, nil
}

// Close releases database connections. It is safe to call more than once.
func (a *App) Close() {
	if a.Retrieval != nil {
		a.Retrieval.Shutdown()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.WithError(err).Error("Failed to release resource")
		}
	}
	a.closers = nil
	a.index = nil
}

// NewObjectSource returns the source configured for the catalog dataset.
func NewObjectSource(cfg config.Config) (storage.ObjectSource, error) {
	switch cfg.Catalog.Source {
	case "", "file":
		return storage.NewFileSource(cfg.Catalog.Root), nil
	case "s3":
		if cfg.S3.BucketName == "" {
			return nil, fmt.Errorf("catalog source s3 requires s3.bucket_name")
		}
		return storage.NewS3Source(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

// NewEmbedder returns the configured provider wrapped with timeout, retry
// and rate limiting.
func NewEmbedder(cfg config.EmbeddingConfig, m *metrics.Metrics) (embedding.Provider, error) {
	var (
		provider embedding.Provider
		err      error
	)
	switch cfg.Provider {
	case "", "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			log.Warn("No embedding API key configured; requests to api.openai.com will be rejected")
		}
		provider, err = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
	case "hashing":
		provider = embedding.NewHashingProvider(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return embedding.NewGuardedProvider(provider, embedding.GuardConfig{
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, m), nil
}

// vectorIndex opens the configured index store once. A failed attempt leaves
// nothing open, and the next retrieval attempt connects again.
func (a *App) vectorIndex(ctx context.Context, cfg config.Config) (repository.VectorIndex, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index != nil {
		return a.index, nil
	}

	log.WithField("backend", cfg.Index.Backend).Info("Initializing vector index...")
	index, closer, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.index = index
	return index, nil
}

func openIndex(ctx context.Context, cfg config.Config) (repository.VectorIndex, func() error, error) {
	switch cfg.Index.Backend {
	case "", "memory":
		return memory.NewVectorIndex(), nil, nil

	case "mongo":
		client, err := mongo.ConnectDB(ctx, cfg.Database.URI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.Database.Name)

		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		mongo.EnsureVectorIndexes(indexCtx, db, cfg.Index.Collection)
		closer := func() error {
			log.Info("Disconnecting MongoDB...")
			return mongo.DisconnectDB(client)
		}
		return mongo.NewMongoVectorIndex(db, cfg.Index.Collection), closer, nil

	case "postgres":
		db, err := postgres.OpenDB(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db, cfg.Index.Table); err != nil {
			db.Close()
			return nil, nil, err
		}
		closer := func() error {
			log.Info("Closing PostgreSQL connection pool...")
			return db.Close()
		}
		return postgres.NewPostgresVectorIndex(db, cfg.Index.Table), closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

// ConfigureLogging applies the configured level and format to the standard
// logrus logger.
func ConfigureLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}
