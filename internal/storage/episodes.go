package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/noema-ai/noema/internal/model"
)

// CreateEpisode records the raw text of one teaching interaction and links
// it to its source message. Episode names are deterministic per message, so
// MERGE makes re-commits of the same message idempotent.
func (s *Store) CreateEpisode(ctx context.Context, e model.Episode) (model.Episode, error) {
	if e.ReferenceTime.IsZero() {
		e.ReferenceTime = time.Now().UTC()
	}

	// The RETURN makes a missing source message explicit: with zero MATCH
	// rows Cypher runs no MERGE and still reports success.
	records, err := s.write(ctx,
		`MATCH (m:Message {uid: $source_uid})
		 MERGE (e:Episode {name: $name})
		 SET e.body = $body, e.source_description = $source_description,
		     e.reference_time = $reference_time, e.source_uid = $source_uid
		 MERGE (e)-[:DERIVED_FROM]->(m)
		 RETURN e.name AS name`,
		episodeParams(e),
	)
	if err != nil {
		return model.Episode{}, fmt.Errorf("storage: create episode: %w", err)
	}
	if len(records) == 0 {
		return model.Episode{}, fmt.Errorf("storage: create episode: source message %s: %w", e.SourceUID, ErrNotFound)
	}
	return e, nil
}

// GetEpisode retrieves an episode by name.
func (s *Store) GetEpisode(ctx context.Context, name string) (model.Episode, error) {
	records, err := s.read(ctx,
		`MATCH (e:Episode {name: $name})
		 RETURN e.name AS name, e.body AS body,
		        e.source_description AS source_description,
		        e.reference_time AS reference_time, e.source_uid AS source_uid`,
		map[string]any{"name": name},
	)
	if err != nil {
		return model.Episode{}, fmt.Errorf("storage: get episode: %w", err)
	}
	if len(records) == 0 {
		return model.Episode{}, ErrNotFound
	}
	return episodeFromRecord(records[0])
}

func episodeParams(e model.Episode) map[string]any {
	return map[string]any{
		"name":               e.Name,
		"body":               e.Body,
		"source_description": e.SourceDescription,
		"reference_time":     e.ReferenceTime.UTC(),
		"source_uid":         e.SourceUID.String(),
	}
}

func episodeFromRecord(rec *neo4j.Record) (model.Episode, error) {
	var e model.Episode

	name, err := recordString(rec, "name")
	if err != nil {
		return model.Episode{}, fmt.Errorf("storage: episode record: %w", err)
	}
	e.Name = name

	e.Body, _ = recordString(rec, "body")
	e.SourceDescription, _ = recordString(rec, "source_description")
	e.ReferenceTime, _ = recordTime(rec, "reference_time")

	sourceUID, err := recordUUID(rec, "source_uid")
	if err != nil {
		return model.Episode{}, fmt.Errorf("storage: episode record: %w", err)
	}
	e.SourceUID = sourceUID

	return e, nil
}
