// Package knowledge composes the Neo4j ledgers, the Qdrant snippet index,
// and the embedding provider behind the contract the agent core depends on.
//
// The agent never talks to a database directly; everything it knows arrives
// through Store.Search and everything it learns leaves through Store.Commit.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/noema-ai/noema/internal/model"
	"github.com/noema-ai/noema/internal/search"
	"github.com/noema-ai/noema/internal/service/embedding"
)

// Ledger is the subset of the storage layer the knowledge store uses.
type Ledger interface {
	CreateMessage(ctx context.Context, m model.Message) (model.Message, error)
	GetMessage(ctx context.Context, uid uuid.UUID) (model.Message, error)
	CreateFact(ctx context.Context, f model.Fact) (model.Fact, error)
	ActiveFact(ctx context.Context, userID, subject, relation string) (model.Fact, error)
	SupersedeFact(ctx context.Context, oldID, newID uuid.UUID) error
	CreateEpisode(ctx context.Context, e model.Episode) (model.Episode, error)
	GetEpisode(ctx context.Context, name string) (model.Episode, error)
}

// Index is the subset of the snippet index the knowledge store uses.
type Index interface {
	Search(ctx context.Context, userID string, embedding []float32, limit int) ([]model.Snippet, error)
	Upsert(ctx context.Context, points []search.Point) error
}

// Store is the knowledge store adapter.
type Store struct {
	ledger Ledger
	index  Index
	embed  embedding.Provider
	logger *slog.Logger
}

// NewStore creates a knowledge store over the given backends.
func NewStore(ledger Ledger, index Index, embed embedding.Provider, logger *slog.Logger) *Store {
	return &Store{
		ledger: ledger,
		index:  index,
		embed:  embed,
		logger: logger,
	}
}

// RecordMessage appends an inbound utterance to the message ledger. Every
// request is recorded before any routing or reasoning happens, so the ledger
// is a complete history of what the agent was told and asked.
func (s *Store) RecordMessage(ctx context.Context, m model.Message) (model.Message, error) {
	return s.ledger.CreateMessage(ctx, m)
}

// Search embeds the query and returns ranked snippets from the user's
// partition of the index. No relevance filtering happens here; callers apply
// their own floor.
func (s *Store) Search(ctx context.Context, userID, query string, limit int) ([]model.Snippet, error) {
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}
	snippets, err := s.index.Search(ctx, userID, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}
	return snippets, nil
}

// ActiveFact returns the currently active fact for a (user, subject, relation)
// key, or storage.ErrNotFound when none exists.
func (s *Store) ActiveFact(ctx context.Context, userID, subject, relation string) (model.Fact, error) {
	return s.ledger.ActiveFact(ctx, userID, subject, relation)
}

// ResolveSource resolves an episode name back to the message uid it was
// derived from.
func (s *Store) ResolveSource(ctx context.Context, episodeName string) (uuid.UUID, error) {
	e, err := s.ledger.GetEpisode(ctx, episodeName)
	if err != nil {
		return uuid.Nil, err
	}
	return e.SourceUID, nil
}

// ResolvedFact is one extracted fact after conflict resolution, ready to
// commit. Supersedes names the active fact this one replaces, if any.
type ResolvedFact struct {
	Fact       model.Fact
	Supersedes *uuid.UUID
}

// FailedFact records a fact that could not be committed.
type FailedFact struct {
	Fact model.Fact
	Err  error
}

// CommitRecord reports the outcome of one teaching commit.
type CommitRecord struct {
	Episode   model.Episode
	Committed []model.Fact
	Failed    []FailedFact
}

// Commit persists one teaching interaction: the episode first, then each
// resolved fact with its supersession, then the snippet index entries.
//
// The episode write is the commit's anchor; if it fails the whole commit
// fails. Fact writes are independent of each other, so a failure on one is
// recorded and the rest proceed. Index writes are best effort: a snippet
// that fails to index leaves the fact committed and retrievable through the
// ledger, just not through semantic search.
func (s *Store) Commit(ctx context.Context, msg model.Message, ack string, facts []ResolvedFact) (CommitRecord, error) {
	episode := model.Episode{
		Name:              model.EpisodeName(msg.UID),
		Body:              fmt.Sprintf("User: %s\nAssistant: %s", msg.Text, ack),
		SourceDescription: "user teaching",
		ReferenceTime:     msg.Timestamp,
		SourceUID:         msg.UID,
	}

	episode, err := s.ledger.CreateEpisode(ctx, episode)
	if err != nil {
		return CommitRecord{}, fmt.Errorf("knowledge: commit episode: %w", err)
	}

	rec := CommitRecord{Episode: episode}
	points := []search.Point{{
		ID:        msg.UID,
		UserID:    msg.UserID,
		Content:   episode.Body,
		SourceUID: &msg.UID,
		Timestamp: msg.Timestamp,
	}}

	for _, rf := range facts {
		fact, err := s.ledger.CreateFact(ctx, rf.Fact)
		if err != nil {
			s.logger.Error("knowledge: fact write failed",
				"user_id", msg.UserID, "statement", rf.Fact.Statement(), "error", err)
			rec.Failed = append(rec.Failed, FailedFact{Fact: rf.Fact, Err: err})
			continue
		}

		if rf.Supersedes != nil {
			if err := s.ledger.SupersedeFact(ctx, *rf.Supersedes, fact.ID); err != nil {
				s.logger.Error("knowledge: supersession failed",
					"old_id", *rf.Supersedes, "new_id", fact.ID, "error", err)
				rec.Failed = append(rec.Failed, FailedFact{Fact: fact, Err: err})
				continue
			}
		}

		rec.Committed = append(rec.Committed, fact)
		points = append(points, search.Point{
			ID:        fact.ID,
			UserID:    msg.UserID,
			Content:   fact.Statement(),
			SourceUID: &msg.UID,
			Timestamp: fact.CreatedAt,
		})
	}

	if err := s.upsertPoints(ctx, points); err != nil {
		s.logger.Warn("knowledge: snippet indexing failed, facts remain in ledger",
			"user_id", msg.UserID, "points", len(points), "error", err)
	}

	return rec, nil
}

// upsertPoints embeds point contents in one batch and writes them to the index.
func (s *Store) upsertPoints(ctx context.Context, points []search.Point) error {
	if len(points) == 0 {
		return nil
	}

	texts := make([]string, len(points))
	for i, p := range points {
		texts[i] = p.Content
	}

	vecs, err := s.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("knowledge: embed snippets: %w", err)
	}
	for i := range points {
		points[i].Embedding = vecs[i]
		if points[i].Timestamp.IsZero() {
			points[i].Timestamp = time.Now().UTC()
		}
	}

	if err := s.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("knowledge: upsert snippets: %w", err)
	}
	return nil
}
