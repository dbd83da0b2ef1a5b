package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/model"
)

const extractorSystemPrompt = `You extract atomic facts from a message as
knowledge triples with epistemic dimensions.

Each fact has:
- subject: the main entity (person, place, concept, object)
- relation: the link (verb, relationship, state)
- object: the second entity or value
- confidence (0.0-1.0): how certain the statement itself is. 1.0 for a plain
  assertion ("Kyiv is the capital"), lower for hedged statements ("maybe",
  "I think").
- temporal: true for events bound to a point in time (bought, met), false
  for standing attributes (is, likes)
- modality: "assertive", "uncertain" (hedged), or "negated" ("no longer",
  "not")

Examples:
"pi equals 3.14" -> {"subject": "pi", "relation": "equals", "object": "3.14", "confidence": 1.0, "temporal": false, "modality": "assertive"}
"I think Oleg likes coffee" -> {"subject": "Oleg", "relation": "likes", "object": "coffee", "confidence": 0.7, "temporal": false, "modality": "uncertain"}
"I no longer work at Google" -> {"subject": "I", "relation": "works at", "object": "Google", "confidence": 1.0, "temporal": true, "modality": "negated"}

Extract every fact, including implicit ones, but never invent facts that are
not in the message. A message with no factual content yields an empty list.

Respond with JSON: {"facts": [{...}, ...]}.`

type extractedFact struct {
	Subject    string  `json:"subject"`
	Relation   string  `json:"relation"`
	Object     string  `json:"object"`
	Confidence float32 `json:"confidence"`
	Temporal   bool    `json:"temporal"`
	Modality   string  `json:"modality"`
}

type extractionPayload struct {
	Facts []extractedFact `json:"facts"`
}

// extractFacts pulls zero or more fact candidates out of a teaching message.
// Zero facts is a valid outcome, and malformed extraction output is treated
// the same way: under-learning is safer than failing the teach pipeline.
func (a *Agent) extractFacts(ctx context.Context, text string) []model.FactCandidate {
	var payload extractionPayload
	err := a.llm.Extract(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: extractorSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Extract the facts from this message:\n\n%s", text)},
	}, &payload)
	if err != nil {
		a.logger.Warn("agent: fact extraction failed, treating as zero facts", "error", err)
		return nil
	}

	candidates := make([]model.FactCandidate, 0, len(payload.Facts))
	for _, f := range payload.Facts {
		c, ok := normalizeCandidate(f)
		if !ok {
			a.logger.Warn("agent: dropping incomplete fact candidate",
				"subject", f.Subject, "relation", f.Relation, "object", f.Object)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// normalizeCandidate validates a raw extracted fact and fills defaults.
// Incomplete triples are rejected; confidence is clamped to [0, 1].
func normalizeCandidate(f extractedFact) (model.FactCandidate, bool) {
	c := model.FactCandidate{
		Subject:    strings.TrimSpace(f.Subject),
		Relation:   strings.TrimSpace(f.Relation),
		Object:     strings.TrimSpace(f.Object),
		Confidence: f.Confidence,
		Temporal:   f.Temporal,
	}
	if c.Subject == "" || c.Relation == "" || c.Object == "" {
		return model.FactCandidate{}, false
	}

	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	switch model.Modality(strings.ToLower(strings.TrimSpace(f.Modality))) {
	case model.ModalityUncertain:
		c.Modality = model.ModalityUncertain
	case model.ModalityNegated:
		c.Modality = model.ModalityNegated
	default:
		c.Modality = model.ModalityAssertive
	}

	return c, true
}
