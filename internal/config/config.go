package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"document-portal/internal/ai"
	"document-portal/models"

	"github.com/joho/godotenv"
)

const (
	HistoryBackendMemory = "memory"
	HistoryBackendRedis  = "redis"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// Session storage
	UploadDir          string
	IndexDir           string
	UseSessionDirs     bool
	ChunkSize          int
	ChunkOverlap       int
	RetrieverK         int
	KeepLatestSessions int
	SessionCleanEvery  time.Duration

	// Generation provider
	LLMProvider     ai.ProviderKind
	LLMModel        string
	Temperature     float32
	MaxOutputTokens int

	// Embedding provider
	EmbeddingProvider ai.ProviderKind
	EmbeddingModel    string

	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GroqAPIKey    string
	GroqBaseURL   string

	// Provider boundary
	ProviderTimeout     time.Duration
	ProviderMaxAttempts int
	ProviderRPM         int

	// History
	HistoryBackend string
	HistoryTTL     time.Duration

	// Redis Configuration
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// MongoDB report store, disabled when MongoURI is empty
	MongoURI string
	DBName   string

	// Telemetry
	ServiceName    string
	TracingEnabled bool
	OTLPEndpoint   string

	LogFile string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		UploadDir:          getEnv("UPLOAD_BASE", "data/uploads"),
		IndexDir:           getEnv("INDEX_BASE", "data/indexes"),
		UseSessionDirs:     getEnvBool("USE_SESSION_DIRS", true),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 200),
		RetrieverK:         getEnvInt("RETRIEVER_K", 5),
		KeepLatestSessions: getEnvInt("KEEP_LATEST_SESSIONS", 3),
		SessionCleanEvery:  getEnvDuration("SESSION_CLEAN_INTERVAL", 0),

		LLMModel:        getEnv("LLM_MODEL", "gemini-2.0-flash"),
		Temperature:     float32(getEnvFloat64("LLM_TEMPERATURE", 0)),
		MaxOutputTokens: getEnvInt("LLM_MAX_OUTPUT_TOKENS", 2048),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-004"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ai.DefaultOpenAIBaseURL),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:   getEnv("GROQ_BASE_URL", ai.DefaultGroqBaseURL),

		ProviderTimeout:     getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		ProviderMaxAttempts: getEnvInt("PROVIDER_MAX_ATTEMPTS", 3),
		ProviderRPM:         getEnvInt("PROVIDER_RPM", 60),

		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", HistoryBackendMemory)),
		HistoryTTL:     getEnvDuration("HISTORY_TTL", time.Hour),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		MongoURI: getEnv("MONGO_URI", ""),
		DBName:   getEnv("DB_NAME", "document_portal"),

		ServiceName:    getEnv("SERVICE_NAME", "document-portal"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),

		LogFile: getEnv("LOG_FILE", ""),
	}

	var err error
	if cfg.LLMProvider, err = ai.ParseLLMProvider(getEnv("LLM_PROVIDER", string(ai.ProviderGemini))); err != nil {
		return nil, err
	}
	if cfg.EmbeddingProvider, err = ai.ParseEmbeddingProvider(getEnv("EMBEDDING_PROVIDER", string(ai.ProviderGoogle))); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep in a request.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be >= 0 and smaller than CHUNK_SIZE (%d): %w",
			c.ChunkOverlap, c.ChunkSize, models.ErrConfiguration)
	}
	if c.RetrieverK <= 0 {
		return fmt.Errorf("RETRIEVER_K must be positive: %w", models.ErrConfiguration)
	}
	if strings.TrimSpace(c.LLMModel) == "" {
		return fmt.Errorf("LLM_MODEL is required: %w", models.ErrConfiguration)
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return fmt.Errorf("EMBEDDING_MODEL is required: %w", models.ErrConfiguration)
	}
	if c.LLMAPIKey() == "" {
		return fmt.Errorf("API key for LLM_PROVIDER=%s is required - set it in .env file: %w", c.LLMProvider, models.ErrConfiguration)
	}
	if c.EmbeddingAPIKey() == "" {
		return fmt.Errorf("API key for EMBEDDING_PROVIDER=%s is required - set it in .env file: %w", c.EmbeddingProvider, models.ErrConfiguration)
	}

	switch c.HistoryBackend {
	case HistoryBackendMemory:
	case HistoryBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("HISTORY_BACKEND=redis requires REDIS_URL: %w", models.ErrConfiguration)
		}
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q (supported: memory, redis): %w", c.HistoryBackend, models.ErrConfiguration)
	}
	return nil
}

func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case ai.ProviderGemini:
		return c.GeminiAPIKey
	case ai.ProviderOpenAI:
		return c.OpenAIAPIKey
	case ai.ProviderGroq:
		return c.GroqAPIKey
	}
	return ""
}

func (c *Config) LLMBaseURL() string {
	switch c.LLMProvider {
	case ai.ProviderOpenAI:
		return c.OpenAIBaseURL
	case ai.ProviderGroq:
		return c.GroqBaseURL
	}
	return ""
}

func (c *Config) EmbeddingAPIKey() string {
	switch c.EmbeddingProvider {
	case ai.ProviderGoogle:
		return c.GeminiAPIKey
	case ai.ProviderOpenAI:
		return c.OpenAIAPIKey
	}
	return ""
}

func (c *Config) GeneratorConfig() ai.GeneratorConfig {
	return ai.GeneratorConfig{
		Provider:        c.LLMProvider,
		Model:           c.LLMModel,
		APIKey:          c.LLMAPIKey(),
		BaseURL:         c.LLMBaseURL(),
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
		Timeout:         c.ProviderTimeout,
	}
}

func (c *Config) EmbedderConfig() ai.EmbedderConfig {
	cfg := ai.EmbedderConfig{
		Provider: c.EmbeddingProvider,
		Model:    c.EmbeddingModel,
		APIKey:   c.EmbeddingAPIKey(),
		Timeout:  c.ProviderTimeout,
	}
	if c.EmbeddingProvider == ai.ProviderOpenAI {
		cfg.BaseURL = c.OpenAIBaseURL
	}
	return cfg
}

func (c *Config) RetryPolicy() ai.RetryPolicy {
	p := ai.DefaultRetryPolicy()
	p.MaxAttempts = c.ProviderMaxAttempts
	return p
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
