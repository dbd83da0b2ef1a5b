package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/noema-ai/noema/internal/model"
)

const healthCheckTimeout = 3 * time.Second

// MessageHandler processes one inbound conversational message.
type MessageHandler interface {
	Handle(ctx context.Context, req model.MessageRequest) (model.MessageResponse, error)
}

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to the HealthChecker interface.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// HandlersDeps carries the dependencies for the HTTP handlers.
type HandlersDeps struct {
	Agent        MessageHandler
	Ledger       HealthChecker
	SnippetIndex HealthChecker
	LLM          HealthChecker // optional
	Logger       *slog.Logger
	Version      string
	MaxBodyBytes int64
}

// Handlers holds the HTTP handler set.
type Handlers struct {
	deps    HandlersDeps
	started time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	return &Handlers{deps: deps, started: time.Now()}
}

// HandleMessages processes POST /v1/messages. Validation failures return
// 400; anything past validation is folded into a well-formed response by
// the agent.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	var req model.MessageRequest
	if err := decodeJSON(w, r, &req, h.deps.MaxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.deps.Agent.Handle(r.Context(), req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleHealth processes GET /health. The fact ledger is the primary store:
// when it is down the service reports unhealthy with a 503. A downed snippet
// index or language model degrades answers but the service stays up, so
// those only mark it degraded.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	backends := make(map[string]string, 3)
	ledgerDown := false
	degraded := false

	if h.deps.Ledger != nil {
		if err := h.deps.Ledger.Health(ctx); err != nil {
			backends["neo4j"] = "disconnected"
			ledgerDown = true
			h.deps.Logger.Warn("health: ledger unreachable", "error", err)
		} else {
			backends["neo4j"] = "connected"
		}
	}
	if h.deps.SnippetIndex != nil {
		if err := h.deps.SnippetIndex.Health(ctx); err != nil {
			backends["qdrant"] = "disconnected"
			degraded = true
			h.deps.Logger.Warn("health: snippet index unreachable", "error", err)
		} else {
			backends["qdrant"] = "connected"
		}
	}
	if h.deps.LLM != nil {
		if err := h.deps.LLM.Health(ctx); err != nil {
			backends["llm"] = "disconnected"
			degraded = true
			h.deps.Logger.Warn("health: llm unreachable", "error", err)
		} else {
			backends["llm"] = "connected"
		}
	}

	status := "healthy"
	code := http.StatusOK
	switch {
	case ledgerDown:
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	case degraded:
		status = "degraded"
	}

	writeJSON(w, r, code, model.HealthResponse{
		Status:        status,
		Version:       h.deps.Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Backends:      backends,
	})
}
