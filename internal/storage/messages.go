package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/noema-ai/noema/internal/model"
)

// CreateMessage records an inbound utterance in the message ledger.
// Messages are immutable; a duplicate uid is a constraint violation.
func (s *Store) CreateMessage(ctx context.Context, m model.Message) (model.Message, error) {
	if m.UID == uuid.Nil {
		m.UID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	_, err := s.write(ctx,
		`CREATE (m:Message {uid: $uid, text: $text, user_id: $user_id, timestamp: $timestamp})`,
		messageParams(m),
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("storage: create message: %w", err)
	}
	return m, nil
}

// GetMessage retrieves a message by uid.
func (s *Store) GetMessage(ctx context.Context, uid uuid.UUID) (model.Message, error) {
	records, err := s.read(ctx,
		`MATCH (m:Message {uid: $uid})
		 RETURN m.uid AS uid, m.text AS text, m.user_id AS user_id, m.timestamp AS timestamp`,
		map[string]any{"uid": uid.String()},
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("storage: get message: %w", err)
	}
	if len(records) == 0 {
		return model.Message{}, ErrNotFound
	}
	return messageFromRecord(records[0])
}

func messageParams(m model.Message) map[string]any {
	return map[string]any{
		"uid":       m.UID.String(),
		"text":      m.Text,
		"user_id":   m.UserID,
		"timestamp": m.Timestamp.UTC(),
	}
}

func messageFromRecord(rec *neo4j.Record) (model.Message, error) {
	var m model.Message

	uid, err := recordUUID(rec, "uid")
	if err != nil {
		return model.Message{}, fmt.Errorf("storage: message record: %w", err)
	}
	m.UID = uid

	m.Text, _ = recordString(rec, "text")
	m.UserID, _ = recordString(rec, "user_id")
	m.Timestamp, _ = recordTime(rec, "timestamp")

	return m, nil
}
