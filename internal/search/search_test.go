package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noema-ai/noema/internal/model"
)

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPort int
		wantTLS  bool
		wantErr  bool
	}{
		{
			name:     "https with REST port maps to gRPC port",
			url:      "https://xyz.cloud.qdrant.io:6333",
			wantHost: "xyz.cloud.qdrant.io",
			wantPort: 6334,
			wantTLS:  true,
		},
		{
			name:     "http localhost REST port",
			url:      "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334,
			wantTLS:  false,
		},
		{
			name:     "explicit gRPC port kept",
			url:      "http://localhost:6334",
			wantHost: "localhost",
			wantPort: 6334,
			wantTLS:  false,
		},
		{
			name:     "no port defaults to gRPC",
			url:      "https://qdrant.example.com",
			wantHost: "qdrant.example.com",
			wantPort: 6334,
			wantTLS:  true,
		},
		{
			name:     "custom port kept",
			url:      "http://localhost:7000",
			wantHost: "localhost",
			wantPort: 7000,
			wantTLS:  false,
		},
		{
			name:    "garbage",
			url:     "not a url",
			wantErr: true,
		},
		{
			name:    "empty",
			url:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseQdrantURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantTLS, useTLS)
		})
	}
}

func TestFilter(t *testing.T) {
	src := uuid.New()
	snippets := []model.Snippet{
		{Content: "gleebs are blue minerals", Score: 0.92, SourceUID: &src},
		{Content: "ok", Score: 0.85},                       // too short
		{Content: "zorp lives in the northern cave", Score: 0.31},
		{Content: "barely related statement", Score: 0.29}, // below floor
		{Content: "   ", Score: 0.9},                       // whitespace only
	}

	kept := Filter(snippets, 0.3, 5)

	require.Len(t, kept, 2)
	assert.Equal(t, "gleebs are blue minerals", kept[0].Content)
	assert.Equal(t, "zorp lives in the northern cave", kept[1].Content)
}

func TestFilter_Empty(t *testing.T) {
	assert.Empty(t, Filter(nil, 0.3, 5))
	assert.Empty(t, Filter([]model.Snippet{}, 0.3, 5))
}

func TestFilter_PreservesOrder(t *testing.T) {
	snippets := []model.Snippet{
		{Content: "first snippet", Score: 0.9},
		{Content: "second snippet", Score: 0.8},
		{Content: "third snippet", Score: 0.7},
	}

	kept := Filter(snippets, 0.0, 1)
	require.Len(t, kept, 3)
	for i, s := range snippets {
		assert.Equal(t, s.Content, kept[i].Content)
	}
}
