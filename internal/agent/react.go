package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/model"
)

const reactSystemPrompt = `You are an assistant with ZERO background knowledge
of the domain. You may use ONLY the context below; never use pretrained
knowledge.

Decide the next step toward completing the task:
- if the context is sufficient to answer, choose action "answer"
- if required information is missing from the context, choose action "search"
  and provide a focused search query

Respond with JSON: {"thought": "...", "action": "answer"|"search", "query": "..."}.
The query field is required only when action is "search".`

// reactDecision is the structured output of one reasoning iteration.
type reactDecision struct {
	Thought string `json:"thought"`
	Action  string `json:"action"`
	Query   string `json:"query"`
}

// answerMarkers and searchMarkers drive the fallback parse when the model
// ignores the structured schema and returns free text.
var (
	answerMarkers = []string{"ready", "sufficient", "can answer", "answer"}
	searchMarkers = []string{"search", "find", "need", "look up", "missing"}
)

// reactLoop is the bounded think-act-observe state machine for the solve
// path. Each iteration either searches for more context or commits to
// answering; the loop always terminates within the iteration budget and
// always ends with exactly one terminal answer step. New snippets are only
// appended; earlier context is never mutated or removed.
func (a *Agent) reactLoop(ctx context.Context, msg model.Message, initial []model.Snippet) ([]model.ReasoningStep, []model.Snippet) {
	accumulated := initial
	var steps []model.ReasoningStep

	for i := 0; i < a.cfg.ReactMaxIterations; i++ {
		decision := a.nextStep(ctx, msg.Text, accumulated, steps)

		if decision.Action != string(model.ActionSearch) {
			steps = append(steps, model.ReasoningStep{
				Thought:     decision.Thought,
				Action:      model.ActionAnswer,
				Observation: "ready to answer",
			})
			return steps, accumulated
		}

		query := strings.TrimSpace(decision.Query)
		if query == "" {
			query = decision.Thought
		}

		step := model.ReasoningStep{
			Thought: decision.Thought,
			Action:  model.ActionSearch,
			Query:   query,
		}

		found, err := a.store.Search(ctx, msg.UserID, query, a.cfg.ReactSearchCap)
		if err != nil {
			a.logger.Warn("agent: reasoning search failed",
				"uid", msg.UID, "query", query, "error", err)
			step.Observation = "search unavailable"
		} else {
			found = filterReasonable(found)
			accumulated = append(accumulated, found...)
			step.Observation = renderObservation(found)
		}
		steps = append(steps, step)
	}

	// Budget exhausted: force the terminal transition.
	steps = append(steps, model.ReasoningStep{
		Thought:     "iteration budget reached, answering with the context gathered so far",
		Action:      model.ActionAnswer,
		Observation: "ready to answer",
	})
	return steps, accumulated
}

// nextStep asks the model for a structured thought-action decision. A
// malformed structured reply falls back to a plain completion parsed by
// marker inspection; an unreachable model forces the answer action so the
// loop still terminates with a response attempt.
func (a *Agent) nextStep(ctx context.Context, task string, snippets []model.Snippet, history []model.ReasoningStep) reactDecision {
	prompt := buildReactPrompt(task, snippets, history)

	var decision reactDecision
	err := a.llm.Extract(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: reactSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, &decision)
	if err == nil && decision.Action != "" {
		decision.Action = normalizeAction(decision.Action)
		return decision
	}
	a.logger.Warn("agent: structured reasoning step failed, falling back to text parse", "error", err)

	text, err := a.llm.Complete(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: reactSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		a.logger.Warn("agent: reasoning step failed, forcing answer", "error", err)
		return reactDecision{
			Thought: "reasoning unavailable, answering with current context",
			Action:  string(model.ActionAnswer),
		}
	}
	return parseReactText(text)
}

// parseReactText recovers a decision from free-form model output: the whole
// text becomes the thought and markers decide the action, defaulting to
// answer.
func parseReactText(text string) reactDecision {
	thought := strings.TrimSpace(text)
	lower := strings.ToLower(thought)

	for _, marker := range answerMarkers {
		if strings.Contains(lower, marker) {
			return reactDecision{Thought: thought, Action: string(model.ActionAnswer)}
		}
	}
	for _, marker := range searchMarkers {
		if strings.Contains(lower, marker) {
			return reactDecision{Thought: thought, Action: string(model.ActionSearch)}
		}
	}
	return reactDecision{Thought: thought, Action: string(model.ActionAnswer)}
}

func normalizeAction(action string) string {
	if strings.ToLower(strings.TrimSpace(action)) == string(model.ActionSearch) {
		return string(model.ActionSearch)
	}
	return string(model.ActionAnswer)
}

// filterReasonable drops unusable search hits inside the loop; the relevance
// floor does not apply here because the model asked for these specifically.
func filterReasonable(snippets []model.Snippet) []model.Snippet {
	kept := snippets[:0]
	for _, s := range snippets {
		if len(strings.TrimSpace(s.Content)) >= minSnippetLen {
			kept = append(kept, s)
		}
	}
	return kept
}

func buildReactPrompt(task string, snippets []model.Snippet, history []model.ReasoningStep) string {
	var b strings.Builder

	b.WriteString("Context from memory (what you were taught):\n")
	if len(snippets) == 0 {
		b.WriteString("(empty, nothing was taught)\n")
	} else {
		for i, s := range snippets {
			source := "unknown"
			if s.SourceUID != nil {
				source = s.SourceUID.String()
			}
			fmt.Fprintf(&b, "[%d] (%s): %s\n", i+1, source, s.Content)
		}
	}

	if len(history) > 0 {
		b.WriteString("\nPrevious steps:\n")
		for i, step := range history {
			fmt.Fprintf(&b, "Step %d:\n  Thought: %s\n  Action: %s\n  Result: %s\n",
				i+1, step.Thought, step.Action, truncate(step.Observation, 200))
		}
	}

	b.WriteString("\nTask: ")
	b.WriteString(task)
	return b.String()
}

func renderObservation(found []model.Snippet) string {
	if len(found) == 0 {
		return "no results"
	}
	var lines []string
	for _, s := range found {
		lines = append(lines, s.Content)
	}
	return fmt.Sprintf("found %d results: %s", len(found), strings.Join(lines, "; "))
}

// renderReasoning flattens the step trace into the diagnostic reasoning
// field of solve responses. It carries no contract for callers.
func renderReasoning(steps []model.ReasoningStep) string {
	var b strings.Builder
	for i, step := range steps {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "step %d: thought=%s action=%s", i+1, step.Thought, step.Action)
		if step.Query != "" {
			fmt.Fprintf(&b, " query=%s", step.Query)
		}
		if step.Observation != "" {
			fmt.Fprintf(&b, " observation=%s", truncate(step.Observation, 200))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
