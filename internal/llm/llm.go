// Package llm provides the language model adapter used by the agent core.
//
// Two contracts are exposed: Complete (free text) and Extract (structured
// JSON decoded into a typed target). Failures surface as typed errors —
// ErrUnavailable when the backend is unreachable or misbehaving,
// ErrMalformedOutput when the model's output does not match the expected
// schema. Malformed output is never silently accepted.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnavailable indicates the model backend could not be reached or
// returned a non-success status.
var ErrUnavailable = errors.New("llm: backend unavailable")

// ErrMalformedOutput indicates the model returned output that does not
// decode into the requested schema.
var ErrMalformedOutput = errors.New("llm: malformed output")

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a chat prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the adapter contract the agent core consumes. Implementations
// hold no conversational state; every call is self-contained.
type Client interface {
	// Complete generates free-form text from a chat prompt.
	Complete(ctx context.Context, messages []ChatMessage) (string, error)

	// Extract generates structured output and decodes it into target,
	// which must be a pointer to a JSON-taggable struct. Returns an error
	// wrapping ErrMalformedOutput when the output does not decode.
	Extract(ctx context.Context, messages []ChatMessage, target any) error
}

// fencedJSON matches the first {...} block in a response, including inside
// markdown code fences. Models wrap JSON in prose often enough that decoding
// the raw response first and falling back to this is the pragmatic order.
var fencedJSON = regexp.MustCompile(`(?s)\{.*\}`)

// DecodeJSON decodes a model response into target, tolerating surrounding
// prose and code fences. Returns ErrMalformedOutput (wrapped) when no valid
// JSON object can be recovered.
func DecodeJSON(response string, target any) error {
	cleaned := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(cleaned), target); err == nil {
		return nil
	}

	match := fencedJSON.FindString(cleaned)
	if match == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(match), target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
