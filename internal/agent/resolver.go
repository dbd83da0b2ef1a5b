package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/model"
	"github.com/noema-ai/noema/internal/storage"
)

const conflictSystemPrompt = `You detect contradictions between a new fact and
previously stored knowledge.

Classify the relationship as one of:
- "direct": the objects are mutually exclusive; both cannot be true
  (e.g. "pi equals 3.14" vs "pi equals 4")
- "partial": the facts are compatible or additive; both can hold
  (e.g. "Oleg likes coffee" vs "Oleg likes tea")
- "none": no meaningful overlap

Respond with JSON: {"kind": "direct"|"partial"|"none", "confidence": 0.0-1.0}.`

type conflictJudgment struct {
	Kind       string  `json:"kind"`
	Confidence float32 `json:"confidence"`
}

// resolvedCandidate is one candidate promoted to a fact, with the prior
// active fact it supersedes when a direct conflict was found.
type resolvedCandidate struct {
	fact       model.Fact
	supersedes *model.Fact
}

// resolveCandidates runs conflict detection for each extracted candidate,
// independently and in extraction order. The policy is auto-resolve with the
// new fact winning: a direct conflict above the confidence threshold marks
// the prior active fact for supersession. Partial conflicts coexist.
//
// Detection failures fail open. A candidate whose conflict check errors is
// committed as if no conflict existed; blocking learning on a detection
// failure would be worse than an occasional stale fact.
func (a *Agent) resolveCandidates(ctx context.Context, msg model.Message, candidates []model.FactCandidate) []resolvedCandidate {
	resolved := make([]resolvedCandidate, 0, len(candidates))
	for _, c := range candidates {
		rc := resolvedCandidate{fact: model.Fact{
			UserID:     msg.UserID,
			Subject:    c.Subject,
			Relation:   c.Relation,
			Object:     c.Object,
			Confidence: c.Confidence,
			Temporal:   c.Temporal,
			Modality:   c.Modality,
			SourceUID:  msg.UID,
			Status:     model.FactActive,
		}}

		kind, confidence := a.detectConflict(ctx, msg.UserID, c)
		if kind == model.ConflictDirect && confidence >= a.cfg.ConflictThreshold {
			prior, err := a.store.ActiveFact(ctx, msg.UserID, c.Subject, c.Relation)
			switch {
			case err == nil:
				rc.supersedes = &prior
				a.logger.Info("agent: direct conflict, new fact supersedes old",
					"user_id", msg.UserID, "old", prior.Statement(),
					"new", c.Statement(), "confidence", confidence)
			case errors.Is(err, storage.ErrNotFound):
				// Conflict detected against a snippet but no active fact holds
				// the key; nothing to supersede.
			default:
				a.logger.Warn("agent: active fact lookup failed, committing without supersession",
					"user_id", msg.UserID, "statement", c.Statement(), "error", err)
			}
		}

		resolved = append(resolved, rc)
	}
	return resolved
}

// detectConflict searches stored knowledge near the candidate's key and asks
// the model whether any hit contradicts the candidate. Any failure along the
// way degrades to ConflictNone.
func (a *Agent) detectConflict(ctx context.Context, userID string, c model.FactCandidate) (model.ConflictKind, float32) {
	query := c.Subject + " " + c.Relation
	snippets, err := a.store.Search(ctx, userID, query, a.cfg.ConflictSearchCap)
	if err != nil {
		a.logger.Warn("agent: conflict search failed, treating as no conflict",
			"user_id", userID, "query", query, "error", err)
		return model.ConflictNone, 0
	}
	if len(snippets) == 0 {
		return model.ConflictNone, 0
	}

	var lines []string
	for i, s := range snippets {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, s.Content))
	}
	prompt := fmt.Sprintf("New fact: %q\n\nStored knowledge:\n%s\n\nDoes any stored statement contradict the new fact?",
		c.Statement(), strings.Join(lines, "\n"))

	var judgment conflictJudgment
	err = a.llm.Extract(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: conflictSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, &judgment)
	if err != nil {
		a.logger.Warn("agent: contradiction check failed, treating as no conflict",
			"user_id", userID, "statement", c.Statement(), "error", err)
		return model.ConflictNone, 0
	}

	switch model.ConflictKind(strings.ToLower(judgment.Kind)) {
	case model.ConflictDirect:
		return model.ConflictDirect, judgment.Confidence
	case model.ConflictPartial:
		return model.ConflictPartial, judgment.Confidence
	default:
		return model.ConflictNone, judgment.Confidence
	}
}
