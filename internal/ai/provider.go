package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"document-portal/models"
)

// ProviderKind names one member of the closed set of supported providers.
type ProviderKind string

const (
	ProviderGemini ProviderKind = "gemini"
	ProviderOpenAI ProviderKind = "openai"
	ProviderGroq   ProviderKind = "groq"

	// Embedding providers
	ProviderGoogle ProviderKind = "google"
)

var (
	llmProviders       = []ProviderKind{ProviderGemini, ProviderOpenAI, ProviderGroq}
	embeddingProviders = []ProviderKind{ProviderGoogle, ProviderOpenAI}
)

const (
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// Generator produces a completion for an ordered list of chat messages.
type Generator interface {
	Generate(ctx context.Context, messages []models.ChatMessage) (string, error)
	Model() string
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// ParseLLMProvider resolves a configured name to a generation provider.
func ParseLLMProvider(name string) (ProviderKind, error) {
	return parseProvider(name, llmProviders, "llm")
}

// ParseEmbeddingProvider resolves a configured name to an embedding provider.
func ParseEmbeddingProvider(name string) (ProviderKind, error) {
	return parseProvider(name, embeddingProviders, "embedding")
}

func parseProvider(name string, allowed []ProviderKind, role string) (ProviderKind, error) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range allowed {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown %s provider %q (supported: %v): %w", role, name, allowed, models.ErrConfiguration)
}

type GeneratorConfig struct {
	Provider        ProviderKind
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration

	// OnTokens, when set, receives the token count reported for each completion.
	OnTokens func(model string, tokens int64)
}

type EmbedderConfig struct {
	Provider ProviderKind
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewGenerator builds the configured generation provider.
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (Generator, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm model name is required: %w", models.ErrConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key for llm provider %s is required: %w", cfg.Provider, models.ErrConfiguration)
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	case ProviderOpenAI:
		cfg.BaseURL = orDefault(cfg.BaseURL, DefaultOpenAIBaseURL)
		return NewOpenAIChat(cfg), nil
	case ProviderGroq:
		cfg.BaseURL = orDefault(cfg.BaseURL, DefaultGroqBaseURL)
		return NewOpenAIChat(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q: %w", cfg.Provider, models.ErrConfiguration)
	}
}

// NewEmbedder builds the configured embedding provider.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (Embedder, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("embedding model name is required: %w", models.ErrConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key for embedding provider %s is required: %w", cfg.Provider, models.ErrConfiguration)
	}

	switch cfg.Provider {
	case ProviderGoogle:
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		cfg.BaseURL = orDefault(cfg.BaseURL, DefaultOpenAIBaseURL)
		return NewOpenAIEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q: %w", cfg.Provider, models.ErrConfiguration)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
