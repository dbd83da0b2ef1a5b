package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// perCallTimeout is the maximum time for a single model call. Separate from
// the request context so one slow generation doesn't eat the whole pipeline
// budget.
const perCallTimeout = 60 * time.Second

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
// Works against OpenAI itself as well as local vLLM or llama.cpp servers.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// baseURL should include the version prefix, e.g. "http://localhost:8000/v1".
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: perCallTimeout + 5*time.Second,
		},
	}
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete generates free-form text.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return c.chat(ctx, messages, nil)
}

// Extract generates structured JSON and decodes it into target. The request
// pins temperature low and asks for a JSON object response; decoding still
// tolerates fenced output for backends that ignore response_format.
func (c *OpenAIClient) Extract(ctx context.Context, messages []ChatMessage, target any) error {
	content, err := c.chat(ctx, messages, &responseFormat{Type: "json_object"})
	if err != nil {
		return err
	}
	return DecodeJSON(content, target)
}

func (c *OpenAIClient) chat(ctx context.Context, messages []ChatMessage, format *responseFormat) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	body, err := json.Marshal(openAIChatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    0.1,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var result openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrMalformedOutput, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrUnavailable, result.Error.Type, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrMalformedOutput)
	}

	return result.Choices[0].Message.Content, nil
}

// Healthy checks that the endpoint is reachable by listing models.
func (c *OpenAIClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("llm: build health request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
