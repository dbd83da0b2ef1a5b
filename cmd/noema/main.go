package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/noema-ai/noema/internal/agent"
	"github.com/noema-ai/noema/internal/config"
	"github.com/noema-ai/noema/internal/knowledge"
	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/mcp"
	"github.com/noema-ai/noema/internal/ratelimit"
	"github.com/noema-ai/noema/internal/search"
	"github.com/noema-ai/noema/internal/server"
	"github.com/noema-ai/noema/internal/service/embedding"
	"github.com/noema-ai/noema/internal/storage"
	"github.com/noema-ai/noema/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("NOEMA_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("noema starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to Neo4j and ensure constraints and indexes exist.
	ledger, err := storage.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = ledger.Close(context.Background()) }()

	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("storage schema: %w", err)
	}

	// Embedding provider.
	embedder := newEmbeddingProvider(cfg, logger)

	// Qdrant snippet index.
	index, err := search.NewQdrantIndex(search.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Dims:       uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
	}, logger)
	if err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	defer func() { _ = index.Close() }()

	if err := index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}
	logger.Info("qdrant: enabled", "collection", cfg.QdrantCollection)

	// Language model client.
	client := newLLMClient(cfg, logger)

	// Knowledge store and agent.
	store := knowledge.NewStore(ledger, index, embedder, logger)
	ag := agent.New(client, store, agent.Config{
		RetrievalLimit:     cfg.RetrievalLimit,
		ConflictSearchCap:  cfg.ConflictSearchCap,
		ReactSearchCap:     cfg.ReactSearchCap,
		ReactMaxIterations: cfg.ReactMaxIterations,
		RelevanceFloor:     float32(cfg.RelevanceFloor),
		ConflictThreshold:  float32(cfg.ConflictThreshold),
	}, logger)

	// MCP server (mounted at /mcp by the HTTP server).
	mcpSrv := mcp.New(ag, version, logger)

	var llmHealth server.HealthChecker
	if hc, ok := client.(interface{ Healthy(context.Context) error }); ok {
		llmHealth = server.HealthCheckerFunc(hc.Healthy)
	}

	handlers := server.NewHandlers(server.HandlersDeps{
		Agent:        ag,
		Ledger:       server.HealthCheckerFunc(ledger.Health),
		SnippetIndex: server.HealthCheckerFunc(index.Healthy),
		LLM:          llmHealth,
		Logger:       logger,
		Version:      version,
		MaxBodyBytes: cfg.MaxRequestBodyBytes,
	})

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = limiter.Close() }()
		logger.Info("rate limiting: memory token bucket", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.ServerConfig{
		Handlers:     handlers,
		MCPServer:    mcpSrv.MCPServer(),
		RateLimiter:  limiter,
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("noema shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	return nil
}

// newEmbeddingProvider picks the embedding backend. "auto" prefers OpenAI
// when an API key is present, then Ollama, then noop.
func newEmbeddingProvider(cfg config.Config, logger *slog.Logger) embedding.Provider {
	provider := cfg.EmbeddingProvider
	if provider == "auto" {
		switch {
		case cfg.OpenAIAPIKey != "":
			provider = "openai"
		case cfg.OllamaURL != "":
			provider = "ollama"
		default:
			provider = "noop"
		}
	}

	switch provider {
	case "openai":
		logger.Info("embeddings: openai", "model", cfg.EmbeddingModel, "dims", cfg.EmbeddingDimensions)
		return embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	case "ollama":
		logger.Info("embeddings: ollama", "model", cfg.OllamaEmbedModel, "dims", cfg.EmbeddingDimensions)
		return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.EmbeddingDimensions)
	default:
		logger.Warn("embeddings: noop provider; retrieval will return nothing useful")
		return embedding.NewNoopProvider(cfg.EmbeddingDimensions)
	}
}

// newLLMClient picks the chat completion backend.
func newLLMClient(cfg config.Config, logger *slog.Logger) llm.Client {
	switch cfg.LLMProvider {
	case "ollama":
		logger.Info("llm: ollama", "model", cfg.OllamaModel)
		return llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel)
	default:
		logger.Info("llm: openai-compatible", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModel)
		return llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	}
}
