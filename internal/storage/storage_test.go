package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noema-ai/noema/internal/model"
)

func record(keys []string, values []any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func TestFactParams(t *testing.T) {
	id := uuid.New()
	source := uuid.New()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	f := model.Fact{
		ID:         id,
		UserID:     "u1",
		Subject:    "gleeb",
		Relation:   "is",
		Object:     "a blue mineral",
		Confidence: 0.9,
		Temporal:   false,
		Modality:   model.ModalityAssertive,
		SourceUID:  source,
		Status:     model.FactActive,
		CreatedAt:  created,
	}

	params := factParams(f)
	assert.Equal(t, id.String(), params["id"])
	assert.Equal(t, "u1", params["user_id"])
	assert.Equal(t, "gleeb", params["subject"])
	assert.Equal(t, "is", params["relation"])
	assert.Equal(t, "a blue mineral", params["object"])
	assert.InDelta(t, 0.9, params["confidence"].(float64), 1e-6)
	assert.Equal(t, false, params["temporal"])
	assert.Equal(t, "assertive", params["modality"])
	assert.Equal(t, source.String(), params["source_uid"])
	assert.Equal(t, "active", params["status"])
	// Passed through as time.Time so the driver stores a native datetime
	// and ORDER BY compares chronologically, not lexicographically.
	assert.Equal(t, created, params["created_at"])
}

func TestFactFromRecord(t *testing.T) {
	id := uuid.New()
	source := uuid.New()
	superseder := uuid.New()

	rec := record(
		[]string{"id", "user_id", "subject", "relation", "object", "confidence",
			"temporal", "modality", "source_uid", "status", "superseded_by", "created_at"},
		[]any{id.String(), "u1", "gleeb", "is", "a red mineral", 0.8,
			false, "assertive", source.String(), "superseded", superseder.String(),
			"2026-03-01T10:00:00Z"},
	)

	f, err := factFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, id, f.ID)
	assert.Equal(t, "u1", f.UserID)
	assert.Equal(t, "gleeb is a red mineral", f.Statement())
	assert.Equal(t, model.FactSuperseded, f.Status)
	require.NotNil(t, f.SupersededBy)
	assert.Equal(t, superseder, *f.SupersededBy)
	assert.Equal(t, source, f.SourceUID)
	assert.Equal(t, 2026, f.CreatedAt.Year())
}

func TestFactFromRecord_NoSuperseder(t *testing.T) {
	id := uuid.New()
	source := uuid.New()

	rec := record(
		[]string{"id", "user_id", "subject", "relation", "object", "confidence",
			"temporal", "modality", "source_uid", "status", "superseded_by", "created_at"},
		[]any{id.String(), "u1", "gleeb", "is", "a blue mineral", 0.9,
			false, "assertive", source.String(), "active", nil,
			"2026-03-01T10:00:00Z"},
	)

	f, err := factFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, model.FactActive, f.Status)
	assert.Nil(t, f.SupersededBy)
}

func TestFactFromRecord_BadID(t *testing.T) {
	rec := record([]string{"id"}, []any{"not-a-uuid"})

	_, err := factFromRecord(rec)
	require.Error(t, err)
}

func TestMessageRoundTrip(t *testing.T) {
	uid := uuid.New()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m := model.Message{UID: uid, Text: "hello", UserID: "u1", Timestamp: ts}
	params := messageParams(m)

	rec := record(
		[]string{"uid", "text", "user_id", "timestamp"},
		[]any{params["uid"], params["text"], params["user_id"], params["timestamp"]},
	)

	got, err := messageFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEpisodeRoundTrip(t *testing.T) {
	source := uuid.New()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	e := model.Episode{
		Name:              model.EpisodeName(source),
		Body:              "User: gleebs are blue\nAssistant: noted",
		SourceDescription: "user teaching",
		ReferenceTime:     ts,
		SourceUID:         source,
	}
	params := episodeParams(e)

	rec := record(
		[]string{"name", "body", "source_description", "reference_time", "source_uid"},
		[]any{params["name"], params["body"], params["source_description"],
			params["reference_time"], params["source_uid"]},
	)

	got, err := episodeFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, "teach_"+source.String(), got.Name)
}

func TestRecordHelpers(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		rec := record([]string{"a"}, []any{"x"})
		_, err := recordString(rec, "b")
		require.Error(t, err)
	})

	t.Run("wrong type", func(t *testing.T) {
		rec := record([]string{"a"}, []any{42})
		_, err := recordString(rec, "a")
		require.Error(t, err)
	})

	t.Run("native time", func(t *testing.T) {
		ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		rec := record([]string{"t"}, []any{ts})
		got, err := recordTime(rec, "t")
		require.NoError(t, err)
		assert.True(t, got.Equal(ts))
	})

	t.Run("optional uuid empty string", func(t *testing.T) {
		rec := record([]string{"u"}, []any{""})
		got, err := recordOptionalUUID(rec, "u")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
