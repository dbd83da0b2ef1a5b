package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/noema-ai/noema/internal/knowledge"
	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/model"
)

// neutralAck confirms receipt without claiming any fact was learned. Used
// for teachings with no extractable facts and as the fallback when ack
// generation fails.
const neutralAck = "Noted."

// commitUnavailableResponse is returned when the episode write fails and
// nothing could be committed.
const commitUnavailableResponse = "I wasn't able to save that right now. Nothing was recorded; please try again."

const ackSystemPrompt = `You acknowledge what a user just taught you. Confirm
the learned statements briefly, in one or two sentences, restating them in
your own words. Do not add information beyond the statements given.`

// commitTeach persists one teaching interaction and builds the confirmation
// response. The episode always commits first; facts follow, each tagged with
// the teaching message's uid. Partial fact failures are surfaced in the
// response text, never swallowed.
func (a *Agent) commitTeach(ctx context.Context, st teachState) model.MessageResponse {
	ack := a.generateAck(ctx, st.resolved)

	facts := make([]knowledge.ResolvedFact, 0, len(st.resolved))
	for _, rc := range st.resolved {
		rf := knowledge.ResolvedFact{Fact: rc.fact}
		if rc.supersedes != nil {
			rf.Supersedes = &rc.supersedes.ID
		}
		facts = append(facts, rf)
	}

	rec, err := a.store.Commit(ctx, st.msg, ack, facts)
	if err != nil {
		a.logger.Error("agent: teach commit failed",
			"uid", st.msg.UID, "user_id", st.msg.UserID, "error", err)
		return model.MessageResponse{
			Response:   commitUnavailableResponse,
			References: []string{},
		}
	}

	return buildTeachResponse(st, rec, ack)
}

// generateAck synthesizes the assistant's acknowledgment for the episode
// body. The ack is never fed back through extraction; facts are stored only
// from user-authored text. With no facts to confirm, or when generation
// fails, a fixed neutral ack is used instead.
func (a *Agent) generateAck(ctx context.Context, resolved []resolvedCandidate) string {
	if len(resolved) == 0 {
		return neutralAck
	}

	var statements []string
	for _, rc := range resolved {
		statements = append(statements, "- "+rc.fact.Statement())
	}

	ack, err := a.llm.Complete(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: ackSystemPrompt},
		{Role: llm.RoleUser, Content: "You were taught:\n" + strings.Join(statements, "\n")},
	})
	if err != nil {
		a.logger.Warn("agent: ack generation failed, using neutral ack", "error", err)
		return neutralAck
	}
	ack = strings.TrimSpace(ack)
	if ack == "" {
		return neutralAck
	}
	return ack
}

// buildTeachResponse assembles the confirmation text and references.
// References always include the teaching message's own uid; each
// supersession additionally cites the message that taught the replaced fact.
func buildTeachResponse(st teachState, rec knowledge.CommitRecord, ack string) model.MessageResponse {
	var b strings.Builder
	b.WriteString(ack)

	for _, rc := range st.resolved {
		if rc.supersedes == nil {
			continue
		}
		if !committed(rec, rc.fact) {
			continue
		}
		fmt.Fprintf(&b, "\nUpdated %q to %q.", rc.supersedes.Statement(), rc.fact.Statement())
	}

	for _, failed := range rec.Failed {
		fmt.Fprintf(&b, "\nI could not save %q.", failed.Fact.Statement())
	}

	references := []string{}
	seen := map[string]bool{}
	for _, rc := range st.resolved {
		if rc.supersedes == nil || !committed(rec, rc.fact) {
			continue
		}
		uid := rc.supersedes.SourceUID.String()
		if !seen[uid] {
			seen[uid] = true
			references = append(references, uid)
		}
	}
	own := st.msg.UID.String()
	if !seen[own] {
		references = append(references, own)
	}

	return model.MessageResponse{
		Response:   b.String(),
		References: references,
	}
}

// committed reports whether a fact with the same statement made it into the
// commit record. Resolved facts have no ID until the ledger assigns one, so
// the match is by content key.
func committed(rec knowledge.CommitRecord, f model.Fact) bool {
	for _, c := range rec.Committed {
		if c.Subject == f.Subject && c.Relation == f.Relation && c.Object == f.Object {
			return true
		}
	}
	return false
}
