package model

import (
	"fmt"
	"strings"
	"time"
)

// MaxMessageTextLen bounds inbound message size. Oversized text would flow
// straight into the extraction and embedding pipelines.
const MaxMessageTextLen = 32 * 1024 // 32 KB

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	Text   string `json:"text"`
	UID    string `json:"uid,omitempty"` // caller-supplied UUID; generated when absent
	UserID string `json:"user_id"`
}

// Validate checks required fields and limits. This is the only failure that
// surfaces to the caller as an error status; everything past validation
// degrades to a well-formed response.
func (r MessageRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if len(r.Text) > MaxMessageTextLen {
		return fmt.Errorf("text exceeds maximum length of %d bytes", MaxMessageTextLen)
	}
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// MessageResponse is the agent's reply to one inbound message.
// References lists the message UIDs the answer or confirmation rests on.
// Reasoning is a human-readable trace of the solve loop, present only for
// SOLVE responses; it is diagnostic and carries no contract for callers.
type MessageResponse struct {
	Response   string   `json:"response"`
	References []string `json:"references"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta carries per-request metadata.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports the status of the service and its backends.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Backends      map[string]string `json:"backends"`
}

// Error codes used in API responses.
const (
	ErrCodeValidation  = "validation_error"
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"
)
