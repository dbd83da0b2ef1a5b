package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FactStatus is the lifecycle status of a stored fact.
type FactStatus string

const (
	FactActive     FactStatus = "active"
	FactSuperseded FactStatus = "superseded"
)

// Modality captures how the speaker committed to a fact candidate.
type Modality string

const (
	ModalityAssertive Modality = "assertive"
	ModalityUncertain Modality = "uncertain"
	ModalityNegated   Modality = "negated"
)

// Fact is an atomic subject–relation–object triple taught by a user.
// Facts are produced only from user-authored TEACH text, never from
// agent-generated output. For a given (user, subject, relation) key at most
// one Fact is active at any time; a superseding Fact records the ID of the
// Fact it replaced so history survives supersession.
type Fact struct {
	ID           uuid.UUID  `json:"id"`
	UserID       string     `json:"user_id"`
	Subject      string     `json:"subject"`
	Relation     string     `json:"relation"`
	Object       string     `json:"object"`
	Confidence   float32    `json:"confidence"`
	Temporal     bool       `json:"temporal"`
	Modality     Modality   `json:"modality"`
	SourceUID    uuid.UUID  `json:"source_uid"`
	Status       FactStatus `json:"status"`
	SupersededBy *uuid.UUID `json:"superseded_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Statement renders the triple as a single line of text, the form indexed
// for lexical/semantic search and shown in prompts.
func (f Fact) Statement() string {
	return fmt.Sprintf("%s %s %s", f.Subject, f.Relation, f.Object)
}

// FactCandidate is a triple extracted from a TEACH message before it is
// committed. It has no identity or status yet.
type FactCandidate struct {
	Subject    string   `json:"subject"`
	Relation   string   `json:"relation"`
	Object     string   `json:"object"`
	Confidence float32  `json:"confidence"`
	Temporal   bool     `json:"temporal"`
	Modality   Modality `json:"modality"`
}

// Statement renders the candidate triple as a single line of text.
func (c FactCandidate) Statement() string {
	return fmt.Sprintf("%s %s %s", c.Subject, c.Relation, c.Object)
}

// ConflictKind classifies how an incoming candidate relates to a stored fact.
type ConflictKind string

const (
	// ConflictDirect means the objects are mutually exclusive; the new fact
	// supersedes the old one.
	ConflictDirect ConflictKind = "direct"
	// ConflictPartial means the facts are compatible or additive; both stay active.
	ConflictPartial ConflictKind = "partial"
	// ConflictNone means no meaningful overlap was detected.
	ConflictNone ConflictKind = "none"
)

// Conflict is the transient result of comparing one extracted candidate
// against one previously stored fact. It is never persisted; its outcome is
// expressed only through fact status transitions.
type Conflict struct {
	Existing   Fact
	Incoming   FactCandidate
	Kind       ConflictKind
	Confidence float32
}
