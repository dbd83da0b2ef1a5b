// Package agent implements the conversational core: intent routing, fact
// extraction and conflict resolution, knowledge commits, context retrieval,
// a bounded reasoning loop, and answer composition.
//
// The agent starts with zero domain knowledge. Everything it knows was
// taught by a user; everything it answers is constrained to what that user
// taught, with per-statement citations back to the teaching messages.
//
// Every pipeline is linear: each step depends on the previous step's output,
// so there is no internal parallelism. Concurrent requests run as
// independent pipelines isolated per user.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/noema-ai/noema/internal/knowledge"
	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/model"
)

// Knowledge is the store contract the agent depends on. Implemented by
// knowledge.Store; tests substitute in-memory fakes.
type Knowledge interface {
	RecordMessage(ctx context.Context, m model.Message) (model.Message, error)
	Search(ctx context.Context, userID, query string, limit int) ([]model.Snippet, error)
	ActiveFact(ctx context.Context, userID, subject, relation string) (model.Fact, error)
	ResolveSource(ctx context.Context, episodeName string) (uuid.UUID, error)
	Commit(ctx context.Context, msg model.Message, ack string, facts []knowledge.ResolvedFact) (knowledge.CommitRecord, error)
}

// Config tunes the agent's retrieval and reasoning behavior.
type Config struct {
	RetrievalLimit     int     // broad search cap for the solve path
	ConflictSearchCap  int     // per-candidate search cap during conflict detection
	ReactSearchCap     int     // narrow search cap inside the reasoning loop
	ReactMaxIterations int     // reasoning loop iteration budget
	RelevanceFloor     float32 // snippets scoring below this are noise
	ConflictThreshold  float32 // minimum confidence for auto-supersession
}

func (c Config) withDefaults() Config {
	if c.RetrievalLimit <= 0 {
		c.RetrievalLimit = 10
	}
	if c.ConflictSearchCap <= 0 {
		c.ConflictSearchCap = 5
	}
	if c.ReactSearchCap <= 0 {
		c.ReactSearchCap = 3
	}
	if c.ReactMaxIterations <= 0 {
		c.ReactMaxIterations = 3
	}
	if c.RelevanceFloor <= 0 {
		c.RelevanceFloor = 0.3
	}
	if c.ConflictThreshold <= 0 {
		c.ConflictThreshold = 0.7
	}
	return c
}

// Agent is the conversational core. Safe for concurrent use.
type Agent struct {
	llm    llm.Client
	store  Knowledge
	cfg    Config
	logger *slog.Logger
}

// New creates an agent over the given language model and knowledge store.
func New(client llm.Client, store Knowledge, cfg Config, logger *slog.Logger) *Agent {
	return &Agent{
		llm:    client,
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// teachState carries the fields the teach pipeline accumulates.
type teachState struct {
	msg        model.Message
	candidates []model.FactCandidate
	resolved   []resolvedCandidate
}

// solveState carries the fields the solve pipeline accumulates.
type solveState struct {
	msg     model.Message
	context []model.Snippet
	steps   []model.ReasoningStep
}

// Handle runs one inbound message through the full pipeline. The returned
// error is non-nil only for invalid input; every failure past validation
// degrades to a well-formed response.
func (a *Agent) Handle(ctx context.Context, req model.MessageRequest) (model.MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return model.MessageResponse{}, err
	}

	msg := model.Message{
		UID:       uuid.New(),
		Text:      req.Text,
		UserID:    req.UserID,
		Timestamp: time.Now().UTC(),
	}
	if req.UID != "" {
		uid, err := uuid.Parse(req.UID)
		if err != nil {
			return model.MessageResponse{}, fmt.Errorf("invalid uid: %w", err)
		}
		msg.UID = uid
	}

	// The message ledger records every utterance before any routing happens.
	// A failed write degrades provenance but never blocks the pipeline.
	recorded, err := a.store.RecordMessage(ctx, msg)
	if err != nil {
		a.logger.Error("agent: message ledger write failed",
			"uid", msg.UID, "user_id", msg.UserID, "error", err)
	} else {
		msg = recorded
	}

	intent := a.classifyIntent(ctx, msg.Text)
	a.logger.Info("agent: routed message",
		"uid", msg.UID, "user_id", msg.UserID, "intent", intent)

	switch intent {
	case model.IntentTeach:
		return a.teach(ctx, msg), nil
	default:
		return a.solve(ctx, msg), nil
	}
}

// teach runs the learning pipeline: extract candidates, resolve conflicts,
// commit the episode and facts, and confirm what was learned.
func (a *Agent) teach(ctx context.Context, msg model.Message) model.MessageResponse {
	st := teachState{msg: msg}
	st.candidates = a.extractFacts(ctx, msg.Text)
	st.resolved = a.resolveCandidates(ctx, msg, st.candidates)
	return a.commitTeach(ctx, st)
}

// solve runs the answering pipeline: retrieve context, reason over it, and
// compose a cited answer.
func (a *Agent) solve(ctx context.Context, msg model.Message) model.MessageResponse {
	st := solveState{msg: msg}
	st.context = a.retrieveContext(ctx, msg)

	var finalContext []model.Snippet
	st.steps, finalContext = a.reactLoop(ctx, msg, st.context)

	answer, references := a.composeAnswer(ctx, msg, finalContext)
	return model.MessageResponse{
		Response:   answer,
		References: references,
		Reasoning:  renderReasoning(st.steps),
	}
}
