// Package app wires configuration into the providers and services shared by
// the server, the worker and the CLI.
package app

import (
	"context"
	"fmt"
	"io"

	"document-portal/internal/ai"
	"document-portal/internal/config"
	"document-portal/internal/logger"
	"document-portal/internal/telemetry"
	"document-portal/models"
	"document-portal/services"

	"github.com/redis/go-redis/v9"
)

type Providers struct {
	Generator ai.Generator
	Embedder  ai.Embedder
	closers   []io.Closer
}

// NewProviders builds the configured generation and embedding providers,
// each behind its own guard.
func NewProviders(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Providers, error) {
	onStateChange := func(name, from, to string) {
		logger.Warn("Circuit breaker state changed", "breaker", name, "from", from, "to", to)
		metrics.RecordCircuitBreakerState(name, to)
	}

	genCfg := cfg.GeneratorConfig()
	genCfg.OnTokens = metrics.RecordTokensUsed
	generator, err := ai.NewGenerator(ctx, genCfg)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	p := &Providers{}
	p.track(generator)

	embedder, err := ai.NewEmbedder(ctx, cfg.EmbedderConfig())
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	p.track(embedder)

	p.Generator = ai.GuardGenerator(generator, ai.NewGuard(ai.GuardConfig{
		Name:              "llm-" + string(cfg.LLMProvider),
		RequestsPerMinute: cfg.ProviderRPM,
		Retry:             cfg.RetryPolicy(),
		Timeout:           cfg.ProviderTimeout,
		OnStateChange:     onStateChange,
	}))
	p.Embedder = ai.GuardEmbedder(embedder, ai.NewGuard(ai.GuardConfig{
		Name:              "embedding-" + string(cfg.EmbeddingProvider),
		RequestsPerMinute: cfg.ProviderRPM,
		Retry:             cfg.RetryPolicy(),
		Timeout:           cfg.ProviderTimeout,
		OnStateChange:     onStateChange,
	}))

	logger.Info("Providers ready",
		"llm_provider", cfg.LLMProvider, "llm_model", generator.Model(),
		"embedding_provider", cfg.EmbeddingProvider, "embedding_model", embedder.Model())
	return p, nil
}

func (p *Providers) track(v any) {
	if c, ok := v.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
}

func (p *Providers) Close() {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close provider client", "error", err)
		}
	}
}

type Services struct {
	Prompts    *ai.PromptRegistry
	Store      *services.IndexStore
	Ingestor   *services.Ingestor
	History    services.HistoryStore
	Engine     *services.ConversationEngine
	Analyzer   *services.DocumentAnalyzer
	Comparator *services.DocumentComparator
}

// NewServices builds the domain services over p. rdb is required only for
// the redis history backend.
func NewServices(cfg *config.Config, p *Providers, rdb *redis.Client, metrics *telemetry.Metrics) (*Services, error) {
	prompts, err := ai.DefaultPrompts()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	var history services.HistoryStore
	switch cfg.HistoryBackend {
	case config.HistoryBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis history backend without a redis client: %w", models.ErrConfiguration)
		}
		history = services.NewRedisHistoryStore(rdb, cfg.HistoryTTL)
	default:
		history = services.NewMemoryHistoryStore(cfg.HistoryTTL)
	}

	store := services.NewIndexStore(p.Embedder)
	return &Services{
		Prompts: prompts,
		Store:   store,
		Ingestor: services.NewIngestor(store, services.IngestorConfig{
			TempDir:        cfg.UploadDir,
			IndexDir:       cfg.IndexDir,
			UseSessionDirs: cfg.UseSessionDirs,
			ChunkSize:      cfg.ChunkSize,
			ChunkOverlap:   cfg.ChunkOverlap,
			K:              cfg.RetrieverK,
		}, metrics),
		History: history,
		Engine: services.NewConversationEngine(services.ConversationDeps{
			Generator: p.Generator,
			Prompts:   prompts,
			History:   history,
			Store:     store,
			K:         cfg.RetrieverK,
			Metrics:   metrics,
		}),
		Analyzer:   services.NewDocumentAnalyzer(p.Generator, prompts),
		Comparator: services.NewDocumentComparator(p.Generator, prompts),
	}, nil
}

// SessionCleaner prunes old sessions from the upload and index bases.
func (s *Services) SessionCleaner(cfg *config.Config) services.SessionCleaner {
	return services.SessionCleaner{
		Dirs:  []string{cfg.UploadDir, cfg.IndexDir},
		Keep:  cfg.KeepLatestSessions,
		Store: s.Store,
	}
}

func (s *Services) Close() {
	if err := s.Store.Close(); err != nil {
		logger.Warn("Failed to close index store", "error", err)
	}
}
