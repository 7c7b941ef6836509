// Package app is the composition root. It resolves settings, creates the
// embedding model and generation backend once, opens the cache and the
// store, and wires every core service.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/cache"
	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/adapters/driven/tokens"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/loader"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers"
	"github.com/custodia-labs/docqa/internal/postprocessors"
)

// Options locates configuration on disk.
type Options struct {
	// ConfigDir holds config.toml and the prompt templates.
	// Empty means ~/.docqa.
	ConfigDir string

	// DotEnv lists .env files loaded before settings are resolved.
	DotEnv []string
}

// App holds the wired services. Fields are safe for concurrent use.
type App struct {
	Settings *domain.AppSettings
	Warnings []string

	SettingsService *services.SettingsService
	Query           *services.QueryEngine
	Ingest          *services.IngestService
	Embeddings      *services.EmbeddingEngine
	Documents       *services.DocumentService
	Projects        *services.ProjectService
	Conversations   *services.ConversationService
	Cache           *services.CacheService

	closers []func() error
}

// NewSettingsService opens the config store without starting anything else.
// Commands that only read or write configuration use it directly.
func NewSettingsService(opts Options) (*services.SettingsService, error) {
	if err := file.LoadDotEnv(opts.DotEnv...); err != nil {
		return nil, err
	}
	store, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	return services.NewSettingsService(store), nil
}

// New builds the application. A failing embedding model is fatal and
// wraps domain.ErrConfiguration; a failing generation backend or cache only
// adds a warning.
func New(ctx context.Context, opts Options) (*App, error) {
	settingsSvc, err := NewSettingsService(opts)
	if err != nil {
		return nil, err
	}
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, err
	}

	a := &App{Settings: settings, SettingsService: settingsSvc}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	logger.Section("Startup")

	models, err := ai.Init(ctx, settings)
	if err != nil {
		return nil, err
	}
	a.Warnings = append(a.Warnings, models.Warnings...)
	a.onClose(func() error { models.Close(); return nil })
	logger.Debug("embedding model %s (%d dimensions)", models.EmbeddingService.ModelName(), models.Dimension)

	c := cache.Open(ctx, settings.Cache)
	a.onClose(c.Close)
	if h := c.Health(ctx); h.Degraded {
		a.Warnings = append(a.Warnings, h.Message)
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.onClose(store.Close)
	logger.Debug("store at %s", store.Path())

	prompts, err := file.NewPromptStore(promptDir(opts.ConfigDir))
	if err != nil {
		return nil, err
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := registry.BuildPipeline(domain.PipelineConfigFor(settings.Chunking))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	// Inference and ingestion run on separate pools so a long ingestion
	// never starves the pool that ingestion tasks themselves submit to.
	inference := services.NewWorkerPool(settings.Workers.PoolSize, settings.Workers.QueueSize)
	ingestion := services.NewWorkerPool(max(1, settings.Workers.PoolSize/2), settings.Workers.QueueSize)
	a.onClose(func() error { inference.Close(); return nil })
	a.onClose(func() error { ingestion.Close(); return nil })

	docs := store.DocumentStore()
	vectors := store.EmbeddingStore()
	projects := store.ProjectStore()
	conversations := store.ConversationStore()

	a.Embeddings = services.NewEmbeddingEngine(models.EmbeddingService, c, docs, vectors, projects, inference,
		services.EmbeddingEngineConfig{
			TTL:       settings.Cache.EmbeddingTTL,
			BatchSize: settings.Embedding.BatchSize,
		})

	retriever := services.NewRetriever(a.Embeddings, docs, vectors, projects, c, inference,
		settings.Retrieval.SimilarityThreshold, settings.Cache.EmbeddingTTL)

	a.Query = services.NewQueryEngine(retriever, models.LLMService, prompts, tokens.NewCounter(""), c, conversations,
		services.QueryConfig{
			Rerank:            settings.Rerank,
			QueryTTL:          settings.Cache.QueryTTL,
			HistoryTurns:      settings.Retrieval.HistoryTurns,
			GenerationTimeout: settings.LLM.Timeout,
		})

	a.Ingest = services.NewIngestService(docs, projects, pipeline, a.Embeddings, ingestion, c)
	a.Documents = services.NewDocumentService(docs, projects, c)
	a.Projects = services.NewProjectService(projects, docs, c)
	a.Conversations = services.NewConversationService(conversations)
	a.Cache = services.NewCacheService(c)

	ok = true
	return a, nil
}

// Loader returns a file loader that links documents to projectID.
func (a *App) Loader(projectID string) *loader.Loader {
	return loader.New(normalisers.Defaults(), loader.WithProject(projectID))
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func promptDir(configDir string) string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "prompts")
}

// DefaultDotEnv returns the .env files checked at startup: the working
// directory, then ~/.docqa.
func DefaultDotEnv() []string {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".docqa", ".env"))
	}
	return paths
}
