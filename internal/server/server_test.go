package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noema-ai/noema/internal/model"
	"github.com/noema-ai/noema/internal/ratelimit"
)

type fakeAgent struct {
	resp model.MessageResponse
	err  error
	got  model.MessageRequest
}

func (f *fakeAgent) Handle(_ context.Context, req model.MessageRequest) (model.MessageResponse, error) {
	f.got = req
	if f.err != nil {
		return model.MessageResponse{}, f.err
	}
	return f.resp, nil
}

func newTestServer(t *testing.T, agent MessageHandler, ledger, index HealthChecker) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	handlers := NewHandlers(HandlersDeps{
		Agent:        agent,
		Ledger:       ledger,
		SnippetIndex: index,
		Logger:       logger,
		Version:      "test",
		MaxBodyBytes: 64 * 1024,
	})
	return New(ServerConfig{
		Handlers:     handlers,
		Logger:       logger,
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
}

func healthy() HealthChecker {
	return HealthCheckerFunc(func(context.Context) error { return nil })
}

func down(msg string) HealthChecker {
	return HealthCheckerFunc(func(context.Context) error { return errors.New(msg) })
}

func postMessage(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleMessages(t *testing.T) {
	agent := &fakeAgent{resp: model.MessageResponse{
		Response:   "The capital of France is Paris. [source: 1]",
		References: []string{"6f1c2a34-0000-0000-0000-000000000001"},
	}}
	srv := newTestServer(t, agent, healthy(), healthy())

	rec := postMessage(t, srv, `{"text":"what is the capital of France?","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var envelope struct {
		Data model.MessageResponse `json:"data"`
		Meta model.ResponseMeta    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, agent.resp.Response, envelope.Data.Response)
	assert.Equal(t, agent.resp.References, envelope.Data.References)
	assert.NotEmpty(t, envelope.Meta.RequestID)
	assert.Equal(t, "what is the capital of France?", agent.got.Text)
	assert.Equal(t, "u1", agent.got.UserID)
}

func TestHandleMessages_ValidationError(t *testing.T) {
	agent := &fakeAgent{err: fmt.Errorf("agent: invalid request: text is required")}
	srv := newTestServer(t, agent, healthy(), healthy())

	rec := postMessage(t, srv, `{"text":"","user_id":"u1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, model.ErrCodeValidation, apiErr.Error.Code)
	assert.Contains(t, apiErr.Error.Message, "text is required")
}

func TestHandleMessages_MalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, healthy(), healthy())

	rec := postMessage(t, srv, `{"text": "unterminated`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, model.ErrCodeBadRequest, apiErr.Error.Code)
}

func TestHandleMessages_UnknownField(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, healthy(), healthy())

	rec := postMessage(t, srv, `{"text":"hi","user_id":"u1","bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessages_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, healthy(), healthy())

	big := bytes.Repeat([]byte("a"), 128*1024)
	body := fmt.Sprintf(`{"text":"%s","user_id":"u1"}`, big)
	rec := postMessage(t, srv, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		ledger     HealthChecker
		index      HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"all up", healthy(), healthy(), http.StatusOK, "healthy"},
		{"index down", healthy(), down("qdrant gone"), http.StatusOK, "degraded"},
		{"ledger down", down("neo4j gone"), healthy(), http.StatusServiceUnavailable, "unhealthy"},
		{"all down", down("neo4j gone"), down("qdrant gone"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeAgent{}, tt.ledger, tt.index)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			var envelope struct {
				Data model.HealthResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, tt.wantStatus, envelope.Data.Status)
			assert.Len(t, envelope.Data.Backends, 2)
		})
	}
}

func TestHandleHealth_LLMDownDegrades(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	handlers := NewHandlers(HandlersDeps{
		Agent:        &fakeAgent{},
		Ledger:       healthy(),
		SnippetIndex: healthy(),
		LLM:          down("model server gone"),
		Logger:       logger,
		Version:      "test",
		MaxBodyBytes: 64 * 1024,
	})
	srv := New(ServerConfig{
		Handlers:     handlers,
		Logger:       logger,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data model.HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "degraded", envelope.Data.Status)
	assert.Equal(t, "disconnected", envelope.Data.Backends["llm"])
}

func TestRequestIDMiddleware_PropagatesHeader(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{resp: model.MessageResponse{Response: "ok", References: []string{}}}, healthy(), healthy())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"text":"hi","user_id":"u1"}`))
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-abc-123", rec.Header().Get("X-Request-ID"))

	var envelope struct {
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "req-abc-123", envelope.Meta.RequestID)
}

type panicAgent struct{}

func (panicAgent) Handle(context.Context, model.MessageRequest) (model.MessageResponse, error) {
	panic("boom")
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(t, panicAgent{}, healthy(), healthy())

	rec := postMessage(t, srv, `{"text":"hi","user_id":"u1"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, model.ErrCodeInternal, apiErr.Error.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	agent := &fakeAgent{resp: model.MessageResponse{Response: "ok", References: []string{}}}
	handlers := NewHandlers(HandlersDeps{
		Agent:        agent,
		Ledger:       healthy(),
		SnippetIndex: healthy(),
		Logger:       logger,
		Version:      "test",
		MaxBodyBytes: 64 * 1024,
	})
	srv := New(ServerConfig{
		Handlers:     handlers,
		RateLimiter:  ratelimit.NewMemoryLimiter(1, 2),
		Logger:       logger,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	// Burst of 2 passes, third rapid request from the same IP is rejected.
	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"text":"hi","user_id":"u1"}`))
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if i < 2 {
			assert.Equal(t, http.StatusOK, rec.Code, "request %d should be within burst", i+1)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code, "request %d should be rejected", i+1)
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}

	// Health is never rate limited.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, healthy(), healthy())

	req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
