// Package search provides the vector index over taught knowledge.
//
// Every committed fact statement and episode body is indexed as a snippet
// with its source message uid in the payload, so search results carry
// provenance without a second lookup.
package search

import (
	"context"
	"strings"

	"github.com/noema-ai/noema/internal/model"
)

// Searcher is the interface for the snippet index.
// Implementations must be safe for concurrent use.
type Searcher interface {
	// Search returns snippets for a user ranked by similarity to the query
	// vector. Results never cross user boundaries.
	Search(ctx context.Context, userID string, embedding []float32, limit int) ([]model.Snippet, error)

	// Healthy returns nil if the index is reachable, or an error describing
	// the problem.
	Healthy(ctx context.Context) error
}

// Filter drops snippets below the relevance floor or with trivially short
// content, preserving the ranked order of the rest.
func Filter(snippets []model.Snippet, floor float32, minContentLen int) []model.Snippet {
	kept := make([]model.Snippet, 0, len(snippets))
	for _, s := range snippets {
		if s.Score < floor {
			continue
		}
		if len(strings.TrimSpace(s.Content)) < minContentLen {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
