// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Neo4j settings (message, episode, and fact ledgers).
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Qdrant settings (snippet index).
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Language model settings.
	LLMProvider string // "openai" or "ollama"
	LLMBaseURL  string // OpenAI-compatible endpoint (vLLM, llama.cpp, OpenAI itself)
	LLMAPIKey   string
	LLMModel    string
	OllamaURL   string
	OllamaModel string

	// Embedding provider settings.
	EmbeddingProvider   string // "auto", "openai", "ollama", or "noop"
	OpenAIAPIKey        string
	EmbeddingModel      string
	EmbeddingDimensions int // Vector dimensions; must match the chosen model's output.
	OllamaEmbedModel    string

	// Agent tuning.
	RetrievalLimit     int     // broad search cap on the solve path
	ConflictSearchCap  int     // prior-fact search cap per extracted candidate
	ReactSearchCap     int     // narrow search cap inside the reasoning loop
	ReactMaxIterations int     // hard bound on the reasoning loop
	RelevanceFloor     float64 // snippets scoring below this are noise
	ConflictThreshold  float64 // direct-conflict confidence needed to supersede

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
	RateLimitEnabled    bool
	RateLimitRPS        float64
	RateLimitBurst      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("NOEMA_PORT", 8080),
		ReadTimeout:         envDuration("NOEMA_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("NOEMA_WRITE_TIMEOUT", 120*time.Second),
		Neo4jURI:            envStr("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:           envStr("NEO4J_USER", "neo4j"),
		Neo4jPassword:       envStr("NEO4J_PASSWORD", ""),
		Neo4jDatabase:       envStr("NEO4J_DATABASE", "neo4j"),
		QdrantURL:           envStr("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:        envStr("QDRANT_API_KEY", ""),
		QdrantCollection:    envStr("QDRANT_COLLECTION", "noema_snippets"),
		LLMProvider:         envStr("NOEMA_LLM_PROVIDER", "openai"),
		LLMBaseURL:          envStr("NOEMA_LLM_BASE_URL", "http://localhost:8000/v1"),
		LLMAPIKey:           envStr("NOEMA_LLM_API_KEY", ""),
		LLMModel:            envStr("NOEMA_LLM_MODEL", "lapa"),
		OllamaURL:           envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:         envStr("OLLAMA_MODEL", "qwen2.5:3b"),
		EmbeddingProvider:   envStr("NOEMA_EMBEDDING_PROVIDER", "auto"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		EmbeddingModel:      envStr("NOEMA_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt("NOEMA_EMBEDDING_DIMENSIONS", 1024),
		OllamaEmbedModel:    envStr("NOEMA_OLLAMA_EMBED_MODEL", "mxbai-embed-large"),
		RetrievalLimit:      envInt("NOEMA_RETRIEVAL_LIMIT", 10),
		ConflictSearchCap:   envInt("NOEMA_CONFLICT_SEARCH_CAP", 5),
		ReactSearchCap:      envInt("NOEMA_REACT_SEARCH_CAP", 3),
		ReactMaxIterations:  envInt("NOEMA_REACT_MAX_ITERATIONS", 3),
		RelevanceFloor:      envFloat("NOEMA_RELEVANCE_FLOOR", 0.3),
		ConflictThreshold:   envFloat("NOEMA_CONFLICT_THRESHOLD", 0.7),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "noema"),
		LogLevel:            envStr("NOEMA_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("NOEMA_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
		RateLimitEnabled:    envBool("NOEMA_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        envFloat("NOEMA_RATE_LIMIT_RPS", 5),
		RateLimitBurst:      envInt("NOEMA_RATE_LIMIT_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and tuning values
// are within working ranges.
func (c Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("config: NEO4J_URI is required")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config: NOEMA_EMBEDDING_DIMENSIONS must be positive")
	}
	if c.ReactMaxIterations <= 0 {
		return fmt.Errorf("config: NOEMA_REACT_MAX_ITERATIONS must be positive")
	}
	if c.RetrievalLimit <= 0 || c.ConflictSearchCap <= 0 || c.ReactSearchCap <= 0 {
		return fmt.Errorf("config: search caps must be positive")
	}
	if c.RelevanceFloor < 0 || c.RelevanceFloor > 1 {
		return fmt.Errorf("config: NOEMA_RELEVANCE_FLOOR must be in [0,1]")
	}
	if c.ConflictThreshold < 0 || c.ConflictThreshold > 1 {
		return fmt.Errorf("config: NOEMA_CONFLICT_THRESHOLD must be in [0,1]")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: NOEMA_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: rate limit rps and burst must be positive when enabled")
	}
	switch c.LLMProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("config: unsupported NOEMA_LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
