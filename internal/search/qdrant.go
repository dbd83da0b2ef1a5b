package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/noema-ai/noema/internal/model"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// Point is the data needed to upsert a single snippet into Qdrant.
type Point struct {
	ID        uuid.UUID
	UserID    string
	Content   string
	SourceUID *uuid.UUID
	Timestamp time.Time
	Embedding []float32
}

// QdrantIndex implements Searcher backed by Qdrant.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantIndex creates a new QdrantIndex and connects to the Qdrant server via gRPC.
func NewQdrantIndex(cfg QdrantConfig, logger *slog.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist and
// ensures payload indexes are present. CreateFieldIndex is idempotent on
// Qdrant, so index creation is always attempted to backfill indexes added
// after the collection was first created.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("search: check collection exists: %w", err)
	}

	if !exists {
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("search: create collection %q: %w", q.collection, err)
		}
		q.logger.Info("qdrant: created collection", "collection", q.collection, "dims", q.dims)
	} else {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "user_id",
		FieldType:      &keywordType,
	}); err != nil {
		return fmt.Errorf("search: ensure index on user_id: %w", err)
	}

	return nil
}

// Search queries Qdrant for snippets matching the embedding within a user's
// partition. The user_id filter is always applied; results are returned in
// descending score order with content and provenance read from the payload.
func (q *QdrantIndex) Search(ctx context.Context, userID string, embedding []float32, limit int) ([]model.Snippet, error) {
	if limit <= 0 {
		limit = 10
	}

	fetchLimit := uint64(limit) //nolint:gosec // limit is bounded by caller
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(embedding),
		Filter: &qdrant.Filter{Must: []*qdrant.Condition{
			qdrant.NewMatch("user_id", userID),
		}},
		Limit:       &fetchLimit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: qdrant query: %w", err)
	}

	snippets := make([]model.Snippet, 0, len(scored))
	for _, sp := range scored {
		s := model.Snippet{Score: sp.Score}

		payload := sp.Payload
		if v, ok := payload["content"]; ok {
			s.Content = v.GetStringValue()
		}
		if v, ok := payload["source_uid"]; ok {
			if raw := v.GetStringValue(); raw != "" {
				sourceUID, err := uuid.Parse(raw)
				if err != nil {
					q.logger.Warn("qdrant: invalid source_uid in payload", "value", raw)
				} else {
					s.SourceUID = &sourceUID
				}
			}
		}
		if v, ok := payload["timestamp_unix"]; ok {
			s.Timestamp = time.Unix(int64(v.GetDoubleValue()), 0).UTC()
		}

		snippets = append(snippets, s)
	}

	return snippets, nil
}

// Upsert inserts or updates snippet points in Qdrant.
func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := map[string]any{
			"user_id":        p.UserID,
			"content":        p.Content,
			"timestamp_unix": float64(p.Timestamp.Unix()),
		}
		if p.SourceUID != nil {
			payload["source_uid"] = p.SourceUID.String()
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID.String()),
			Vectors: qdrant.NewVectorsDense(p.Embedding),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("search: qdrant upsert %d points: %w", len(points), err)
	}
	return nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5 seconds
// to avoid hammering the health endpoint on every request. Concurrent calls
// after cache expiry are deduplicated via singleflight so only one gRPC call
// is made; all waiters share its result.
func (q *QdrantIndex) Healthy(ctx context.Context) error {
	// Fast path: return the cached result if fresh.
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// Deduplicate concurrent checks. Use context.Background() instead of the
	// caller's ctx because singleflight reuses the first caller's context —
	// if that caller cancels, all waiters would get a stale error.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := q.client.HealthCheck(checkCtx)
		if err != nil {
			wrapped := fmt.Errorf("search: qdrant unhealthy: %w", err)
			q.storeHealthErr(wrapped)
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// storeHealthErr stores an error (or nil) in the atomic.Value.
// atomic.Value cannot store nil directly, so we wrap it in a pointer.
func (q *QdrantIndex) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

// loadHealthErr loads the cached health error.
func (q *QdrantIndex) loadHealthErr() error {
	v := q.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
