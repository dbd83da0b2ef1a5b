// Package storage provides the Neo4j persistence layer for Noema.
//
// It holds three ledgers: messages (one node per inbound utterance),
// facts (subject-relation-object triples with lifecycle status), and
// episodes (raw teaching text). All writes are append-or-transition;
// nothing is ever deleted, so full provenance survives supersession.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store wraps a Neo4j driver and exposes ledger operations.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, uri, user, password, database string, logger *slog.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("storage: create driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("storage: verify connectivity: %w", err)
	}

	return &Store{
		driver:   driver,
		database: database,
		logger:   logger,
	}, nil
}

// Close releases the driver's connections.
func (s *Store) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("storage: close driver: %w", err)
	}
	return nil
}

// Health verifies the database connection is alive.
func (s *Store) Health(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("storage: health: %w", err)
	}
	return nil
}

// EnsureSchema creates the uniqueness constraints and lookup indexes the
// ledgers rely on. Idempotent; safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE CONSTRAINT message_uid IF NOT EXISTS FOR (m:Message) REQUIRE m.uid IS UNIQUE`,
		`CREATE CONSTRAINT fact_id IF NOT EXISTS FOR (f:Fact) REQUIRE f.id IS UNIQUE`,
		`CREATE CONSTRAINT episode_name IF NOT EXISTS FOR (e:Episode) REQUIRE e.name IS UNIQUE`,
		`CREATE INDEX fact_key IF NOT EXISTS FOR (f:Fact) ON (f.user_id, f.subject, f.relation)`,
	}
	for _, stmt := range stmts {
		if _, err := s.write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("storage: ensure schema: %w", err)
		}
	}
	return nil
}

// write runs a Cypher statement in a managed write transaction and returns
// the collected records.
func (s *Store) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() { _ = session.Close(ctx) }()

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

// read runs a Cypher statement in a managed read transaction and returns
// the collected records.
func (s *Store) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() { _ = session.Close(ctx) }()

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}
