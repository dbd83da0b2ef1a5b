package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopProvider(t *testing.T) {
	p := NewNoopProvider(8)

	assert.Equal(t, 8, p.Dimensions())

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 8)
	}
}

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello world"}, req.Input)

		resp := openAIResponse{}
		resp.Data = append(resp.Data, struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{Embedding: []float32{0.1, 0.2, 0.3}, Index: 0})
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "text-embedding-3-small", 3)
	p.baseURL = srv.URL

	vec, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIProvider_EmbedBatch_PreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Return results out of order; the provider must reorder by index.
		resp := openAIResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "text-embedding-3-small", 1)
	p.baseURL = srv.URL

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{0}, vecs[0])
	assert.Equal(t, []float32{1}, vecs[1])
	assert.Equal(t, []float32{2}, vecs[2])
}

func TestOpenAIProvider_EmbedBatch_ShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only one vector comes back for two inputs.
		resp := openAIResponse{}
		resp.Data = append(resp.Data, struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{Embedding: []float32{0.1, 0.2, 0.3}, Index: 0})
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "text-embedding-3-small", 3)
	p.baseURL = srv.URL

	_, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embedding returned for input 1")
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "text-embedding-3-small", 3)
	p.baseURL = srv.URL

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOllamaProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mxbai-embed-large", req.Model)
		assert.Equal(t, "hello", req.Prompt)

		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.5, 0.6}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "mxbai-embed-large", 2)

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, vec)
}

func TestOllamaProvider_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "mxbai-embed-large", 1)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "ab", "abc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1}, vecs[0])
	assert.Equal(t, []float32{2}, vecs[1])
	assert.Equal(t, []float32{3}, vecs[2])
}

func TestOllamaProvider_EmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "mxbai-embed-large", 2)

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}
