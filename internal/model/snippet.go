package model

import (
	"time"

	"github.com/google/uuid"
)

// Snippet is one ranked search result surfaced by the knowledge store.
// SourceUID is nil when provenance resolution failed — a degraded but valid
// state; snippets with broken provenance are kept, not dropped.
type Snippet struct {
	Content   string     `json:"content"`
	SourceUID *uuid.UUID `json:"source_uid,omitempty"`
	Score     float32    `json:"score"`
	Timestamp time.Time  `json:"timestamp"`
}

// ReasoningAction is the action chosen by one reasoning iteration.
type ReasoningAction string

const (
	ActionSearch ReasoningAction = "search"
	ActionAnswer ReasoningAction = "answer"
)

// ReasoningStep is one think-act-observe iteration of the solve loop.
// Steps live only in memory for the duration of a single request; the agent
// keeps no procedural memory between invocations.
type ReasoningStep struct {
	Thought     string
	Action      ReasoningAction
	Query       string
	Observation string
}
