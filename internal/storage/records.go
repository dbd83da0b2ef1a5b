package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Record field accessors. Neo4j returns loosely typed values; these helpers
// centralize the coercions so the per-ledger mappers stay readable.

func recordString(rec *neo4j.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T, want string", key, v)
	}
	return s, nil
}

func recordUUID(rec *neo4j.Record, key string) (uuid.UUID, error) {
	s, err := recordString(rec, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("field %q: %w", key, err)
	}
	return id, nil
}

func recordTime(rec *neo4j.Record, key string) (time.Time, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("missing field %q", key)
	}
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %q: %w", key, err)
		}
		return parsed, nil
	case time.Time:
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("field %q is %T, want time", key, v)
	}
}

func recordFloat32(rec *neo4j.Record, key string) (float32, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, fmt.Errorf("missing field %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q is %T, want float64", key, v)
	}
	return float32(f), nil
}

func recordBool(rec *neo4j.Record, key string) (bool, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return false, fmt.Errorf("missing field %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q is %T, want bool", key, v)
	}
	return b, nil
}

// recordOptionalUUID returns nil when the field is absent or null.
func recordOptionalUUID(rec *neo4j.Record, key string) (*uuid.UUID, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("field %q is %T, want string", key, v)
	}
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &id, nil
}
