package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/model"
)

// noInformationResponse is the fixed reply when nothing relevant was taught.
// Producing this instead of inventing an answer is an observable contract,
// not a best-effort fallback.
const noInformationResponse = "I don't have any information about that."

const composerSystemPrompt = `You answer using ONLY the numbered context below.
You have zero background knowledge; anything not in the context is unknown to you.

Rules:
1. If the answer is in the context, reply briefly (2-4 sentences).
2. Cite every statement you use with its number in the form [source: N].
3. If the context does not contain the answer, reply exactly:
   "I don't have any information about that."`

// citationRe matches [source: N] markers in composed answers.
var citationRe = regexp.MustCompile(`\[source:\s*(\d+)\]`)

// composeAnswer generates the final response constrained to the supplied
// context and computes references from the citations the model actually
// made. A reference is never fabricated: cited indices are intersected with
// the context, and only snippets with resolved provenance contribute uids.
func (a *Agent) composeAnswer(ctx context.Context, msg model.Message, snippets []model.Snippet) (string, []string) {
	if len(snippets) == 0 {
		return noInformationResponse, []string{}
	}

	var b strings.Builder
	b.WriteString("CONTEXT:\n")
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Content)
	}
	b.WriteString("\nQUESTION: ")
	b.WriteString(msg.Text)

	answer, err := a.llm.Complete(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: composerSystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	})
	if err != nil {
		a.logger.Error("agent: answer generation failed",
			"uid", msg.UID, "user_id", msg.UserID, "error", err)
		return "I wasn't able to compose an answer right now. Please try again.", []string{}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return noInformationResponse, []string{}
	}

	return answer, extractReferences(answer, snippets)
}

// extractReferences maps [source: N] citations back to the source message
// uids of the supplied context, deduplicated in citation order. Out-of-range
// indices and snippets without provenance are skipped.
func extractReferences(answer string, snippets []model.Snippet) []string {
	references := []string{}
	seen := map[string]bool{}

	for _, match := range citationRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(snippets) {
			continue
		}
		source := snippets[n-1].SourceUID
		if source == nil {
			continue
		}
		uid := source.String()
		if !seen[uid] {
			seen[uid] = true
			references = append(references, uid)
		}
	}

	return references
}
