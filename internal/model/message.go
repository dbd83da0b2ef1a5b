// Package model defines the domain types shared by the agent core,
// the storage and search adapters, and the HTTP/MCP surfaces.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is one inbound user utterance. Immutable once created; it is the
// unit of provenance — every stored fact and episode traces back to exactly
// one Message via its UID.
type Message struct {
	UID       uuid.UUID `json:"uid"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent is the routing decision for an inbound message.
type Intent string

const (
	IntentTeach Intent = "teach"
	IntentSolve Intent = "solve"
)

// Episode is the durable record of one teaching interaction's raw text.
// Exactly one Episode exists per TEACH message; SOLVE messages never create one.
type Episode struct {
	Name              string    `json:"name"` // derived: "teach_" + SourceUID
	Body              string    `json:"body"`
	SourceDescription string    `json:"source_description"`
	ReferenceTime     time.Time `json:"reference_time"`
	SourceUID         uuid.UUID `json:"source_uid"`
}

// EpisodeName derives the deterministic episode name for a message UID.
func EpisodeName(uid uuid.UUID) string {
	return "teach_" + uid.String()
}
