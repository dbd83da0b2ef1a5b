package agent

import (
	"context"

	"github.com/noema-ai/noema/internal/llm"
	"github.com/noema-ai/noema/internal/model"
)

const routerSystemPrompt = `You classify a user message into one of two intents.

TEACH: the user is providing information, facts, definitions, procedures, or
explanations. Examples: "My name is Oleg", "pi equals 3.14", "The capital of
Ukraine is Kyiv", "To bake bread, first knead the dough".

SOLVE: the user is asking a question or requesting a task that applies
knowledge. Examples: "What is my name?", "What is pi?", "Write a sorting
procedure", "Is this algorithm correct?".

Respond with JSON: {"intent": "teach"} or {"intent": "solve"}.`

type intentDecision struct {
	Intent string `json:"intent"`
}

// classifyIntent routes a message to the teach or solve pipeline. The
// classifier is treated as unreliable: any adapter error or unparseable
// output falls back to solve, since answering is safer than silently
// learning malformed content.
func (a *Agent) classifyIntent(ctx context.Context, text string) model.Intent {
	var decision intentDecision
	err := a.llm.Extract(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: routerSystemPrompt},
		{Role: llm.RoleUser, Content: text},
	}, &decision)
	if err != nil {
		a.logger.Warn("agent: intent classification failed, defaulting to solve", "error", err)
		return model.IntentSolve
	}

	switch model.Intent(decision.Intent) {
	case model.IntentTeach:
		return model.IntentTeach
	case model.IntentSolve:
		return model.IntentSolve
	default:
		a.logger.Warn("agent: unknown intent label, defaulting to solve", "intent", decision.Intent)
		return model.IntentSolve
	}
}
