package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/noema-ai/noema/internal/model"
)

// CreateFact appends a fact to the fact ledger and links it to its source
// message for provenance.
func (s *Store) CreateFact(ctx context.Context, f model.Fact) (model.Fact, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = model.FactActive
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	// The RETURN makes a missing source message explicit: with zero MATCH
	// rows Cypher runs no CREATE and still reports success.
	records, err := s.write(ctx,
		`MATCH (m:Message {uid: $source_uid})
		 CREATE (f:Fact {id: $id, user_id: $user_id, subject: $subject,
		   relation: $relation, object: $object, confidence: $confidence,
		   temporal: $temporal, modality: $modality, source_uid: $source_uid,
		   status: $status, created_at: $created_at})
		 CREATE (f)-[:DERIVED_FROM]->(m)
		 RETURN f.id AS id`,
		factParams(f),
	)
	if err != nil {
		return model.Fact{}, fmt.Errorf("storage: create fact: %w", err)
	}
	if len(records) == 0 {
		return model.Fact{}, fmt.Errorf("storage: create fact: source message %s: %w", f.SourceUID, ErrNotFound)
	}
	return f, nil
}

// GetFact retrieves a fact by ID.
func (s *Store) GetFact(ctx context.Context, id uuid.UUID) (model.Fact, error) {
	records, err := s.read(ctx,
		`MATCH (f:Fact {id: $id}) RETURN `+factReturn,
		map[string]any{"id": id.String()},
	)
	if err != nil {
		return model.Fact{}, fmt.Errorf("storage: get fact: %w", err)
	}
	if len(records) == 0 {
		return model.Fact{}, ErrNotFound
	}
	return factFromRecord(records[0])
}

// ActiveFact returns the single active fact for a (user, subject, relation)
// key, or ErrNotFound when none exists.
func (s *Store) ActiveFact(ctx context.Context, userID, subject, relation string) (model.Fact, error) {
	records, err := s.read(ctx,
		`MATCH (f:Fact {user_id: $user_id, subject: $subject, relation: $relation, status: $status})
		 RETURN `+factReturn+`
		 ORDER BY f.created_at DESC LIMIT 1`,
		map[string]any{
			"user_id":  userID,
			"subject":  subject,
			"relation": relation,
			"status":   string(model.FactActive),
		},
	)
	if err != nil {
		return model.Fact{}, fmt.Errorf("storage: active fact: %w", err)
	}
	if len(records) == 0 {
		return model.Fact{}, ErrNotFound
	}
	return factFromRecord(records[0])
}

// ActiveFacts returns all active facts for a user, newest first.
func (s *Store) ActiveFacts(ctx context.Context, userID string) ([]model.Fact, error) {
	records, err := s.read(ctx,
		`MATCH (f:Fact {user_id: $user_id, status: $status})
		 RETURN `+factReturn+`
		 ORDER BY f.created_at DESC`,
		map[string]any{"user_id": userID, "status": string(model.FactActive)},
	)
	if err != nil {
		return nil, fmt.Errorf("storage: active facts: %w", err)
	}

	facts := make([]model.Fact, 0, len(records))
	for _, rec := range records {
		f, err := factFromRecord(rec)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// SupersedeFact transitions an existing fact to superseded, records which
// fact replaced it, and links the two with a SUPERSEDES edge. The superseded
// fact stays in the ledger; only its status changes.
func (s *Store) SupersedeFact(ctx context.Context, oldID, newID uuid.UUID) error {
	records, err := s.write(ctx,
		`MATCH (old:Fact {id: $old_id}), (new:Fact {id: $new_id})
		 SET old.status = $superseded, old.superseded_by = $new_id
		 CREATE (new)-[:SUPERSEDES]->(old)
		 RETURN old.id AS id`,
		map[string]any{
			"old_id":     oldID.String(),
			"new_id":     newID.String(),
			"superseded": string(model.FactSuperseded),
		},
	)
	if err != nil {
		return fmt.Errorf("storage: supersede fact: %w", err)
	}
	if len(records) == 0 {
		return ErrNotFound
	}
	return nil
}

// factReturn is the projection shared by every fact query.
const factReturn = `f.id AS id, f.user_id AS user_id, f.subject AS subject,
		   f.relation AS relation, f.object AS object, f.confidence AS confidence,
		   f.temporal AS temporal, f.modality AS modality, f.source_uid AS source_uid,
		   f.status AS status, f.superseded_by AS superseded_by, f.created_at AS created_at`

func factParams(f model.Fact) map[string]any {
	return map[string]any{
		"id":         f.ID.String(),
		"user_id":    f.UserID,
		"subject":    f.Subject,
		"relation":   f.Relation,
		"object":     f.Object,
		"confidence": float64(f.Confidence),
		"temporal":   f.Temporal,
		"modality":   string(f.Modality),
		"source_uid": f.SourceUID.String(),
		"status":     string(f.Status),
		// Stored as a native datetime so ORDER BY compares chronologically.
		"created_at": f.CreatedAt.UTC(),
	}
}

func factFromRecord(rec *neo4j.Record) (model.Fact, error) {
	var f model.Fact

	id, err := recordUUID(rec, "id")
	if err != nil {
		return model.Fact{}, fmt.Errorf("storage: fact record: %w", err)
	}
	f.ID = id

	f.UserID, _ = recordString(rec, "user_id")
	f.Subject, _ = recordString(rec, "subject")
	f.Relation, _ = recordString(rec, "relation")
	f.Object, _ = recordString(rec, "object")
	f.Confidence, _ = recordFloat32(rec, "confidence")
	f.Temporal, _ = recordBool(rec, "temporal")

	modality, _ := recordString(rec, "modality")
	f.Modality = model.Modality(modality)

	sourceUID, err := recordUUID(rec, "source_uid")
	if err != nil {
		return model.Fact{}, fmt.Errorf("storage: fact record: %w", err)
	}
	f.SourceUID = sourceUID

	status, _ := recordString(rec, "status")
	f.Status = model.FactStatus(status)

	supersededBy, err := recordOptionalUUID(rec, "superseded_by")
	if err != nil {
		return model.Fact{}, fmt.Errorf("storage: fact record: %w", err)
	}
	f.SupersededBy = supersededBy

	f.CreatedAt, _ = recordTime(rec, "created_at")

	return f, nil
}
