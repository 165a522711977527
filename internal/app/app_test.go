package app

import (
	"context"
	"path/filepath"
	"testing"

	"document-portal/internal/config"
	"document-portal/models"
	"document-portal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoGenerator struct{}

func (echoGenerator) Model() string { return "echo" }

func (echoGenerator) Generate(_ context.Context, msgs []models.ChatMessage) (string, error) {
	return msgs[len(msgs)-1].Content, nil
}

type constEmbedder struct{}

func (constEmbedder) Model() string { return "const" }

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func testConfig(t *testing.T) *config.Config {
	base := t.TempDir()
	return &config.Config{
		UploadDir:          filepath.Join(base, "uploads"),
		IndexDir:           filepath.Join(base, "indexes"),
		UseSessionDirs:     true,
		ChunkSize:          1000,
		ChunkOverlap:       200,
		RetrieverK:         4,
		KeepLatestSessions: 2,
		HistoryBackend:     config.HistoryBackendMemory,
		HistoryTTL:         services.DefaultHistoryTTL,
	}
}

func TestNewServices(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewServices(cfg, &Providers{Generator: echoGenerator{}, Embedder: constEmbedder{}}, nil, nil)
	require.NoError(t, err)
	defer svc.Close()

	assert.IsType(t, &services.MemoryHistoryStore{}, svc.History)
	assert.Same(t, svc.Store, svc.Ingestor.Store())

	cleaner := svc.SessionCleaner(cfg)
	assert.Equal(t, []string{cfg.UploadDir, cfg.IndexDir}, cleaner.Dirs)
	assert.Equal(t, 2, cleaner.Keep)
}

func TestNewServices_RedisWithoutClient(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryBackend = config.HistoryBackendRedis

	_, err := NewServices(cfg, &Providers{Generator: echoGenerator{}, Embedder: constEmbedder{}}, nil, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestNewProviders_MissingKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMProvider = "openai"
	cfg.LLMModel = "gpt-4o-mini"
	cfg.EmbeddingProvider = "openai"
	cfg.EmbeddingModel = "text-embedding-3-small"

	_, err := NewProviders(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestNewProviders_OpenAI(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMProvider = "openai"
	cfg.LLMModel = "gpt-4o-mini"
	cfg.EmbeddingProvider = "openai"
	cfg.EmbeddingModel = "text-embedding-3-small"
	cfg.OpenAIAPIKey = "sk-test"
	cfg.ProviderMaxAttempts = 2

	p, err := NewProviders(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "gpt-4o-mini", p.Generator.Model())
	assert.Equal(t, "text-embedding-3-small", p.Embedder.Model())
}
