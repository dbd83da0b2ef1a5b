package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// qdrantURL points at the containerized Qdrant started by TestMain. Empty
// when no container could be started; integration tests skip in that case
// so the pure unit tests in this package still run without Docker.
var qdrantURL string

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.12.4",
		ExposedPorts: []string{"6334/tcp"},
		WaitingFor: wait.ForListeningPort("6334/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	// testcontainers panics (rather than returning an error) when no Docker
	// host can be discovered at all; recover so the no-Docker skip path
	// below still applies.
	container, err := func() (c testcontainers.Container, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("docker host discovery panicked: %v", r)
			}
		}()
		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if err != nil {
		fmt.Fprintf(os.Stderr, "qdrant container unavailable, integration tests will skip: %v\n", err)
		os.Exit(m.Run())
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "6334")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}
	qdrantURL = fmt.Sprintf("http://%s:%s", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// newIntegrationIndex connects to the containerized Qdrant and provisions a
// fresh collection for one test.
func newIntegrationIndex(t *testing.T, collection string) *QdrantIndex {
	t.Helper()
	if qdrantURL == "" {
		t.Skip("qdrant container unavailable")
	}

	idx, err := NewQdrantIndex(QdrantConfig{
		URL:        qdrantURL,
		Collection: collection,
		Dims:       4,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.EnsureCollection(context.Background()))
	return idx
}

func TestQdrantIndex_UpsertAndSearch(t *testing.T) {
	idx := newIntegrationIndex(t, "it_upsert_search")
	ctx := context.Background()

	source := uuid.New()
	stamp := time.Unix(1756600000, 0).UTC()

	points := []Point{
		{
			ID:        uuid.New(),
			UserID:    "alice",
			Content:   "gleeb is a blue mineral",
			SourceUID: &source,
			Timestamp: stamp,
			Embedding: []float32{1, 0, 0, 0},
		},
		{
			ID:        uuid.New(),
			UserID:    "alice",
			Content:   "gleeb melts at low heat",
			Timestamp: stamp,
			Embedding: []float32{0.9, 0.1, 0, 0},
		},
		{
			ID:        uuid.New(),
			UserID:    "bob",
			Content:   "bob's secret",
			Timestamp: stamp,
			Embedding: []float32{1, 0, 0, 0},
		},
	}
	require.NoError(t, idx.Upsert(ctx, points))

	snippets, err := idx.Search(ctx, "alice", []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, snippets, 2, "bob's points must not cross the user partition")

	// Descending score, exact-match vector first.
	assert.Equal(t, "gleeb is a blue mineral", snippets[0].Content)
	assert.GreaterOrEqual(t, snippets[0].Score, snippets[1].Score)

	// Payload round trip: provenance and timestamp survive.
	require.NotNil(t, snippets[0].SourceUID)
	assert.Equal(t, source, *snippets[0].SourceUID)
	assert.Equal(t, stamp, snippets[0].Timestamp)
	assert.Nil(t, snippets[1].SourceUID, "point stored without provenance stays without it")

	for _, s := range snippets {
		assert.NotEqual(t, "bob's secret", s.Content)
	}
}

func TestQdrantIndex_SearchLimit(t *testing.T) {
	idx := newIntegrationIndex(t, "it_search_limit")
	ctx := context.Background()

	points := make([]Point, 5)
	for i := range points {
		points[i] = Point{
			ID:        uuid.New(),
			UserID:    "alice",
			Content:   fmt.Sprintf("snippet %d", i),
			Timestamp: time.Now().UTC(),
			Embedding: []float32{1, float32(i) * 0.01, 0, 0},
		}
	}
	require.NoError(t, idx.Upsert(ctx, points))

	snippets, err := idx.Search(ctx, "alice", []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, snippets, 3)
}

func TestQdrantIndex_UpsertOverwritesByID(t *testing.T) {
	idx := newIntegrationIndex(t, "it_upsert_overwrite")
	ctx := context.Background()

	id := uuid.New()
	point := Point{
		ID:        id,
		UserID:    "alice",
		Content:   "first version",
		Timestamp: time.Now().UTC(),
		Embedding: []float32{1, 0, 0, 0},
	}
	require.NoError(t, idx.Upsert(ctx, []Point{point}))

	point.Content = "second version"
	require.NoError(t, idx.Upsert(ctx, []Point{point}))

	snippets, err := idx.Search(ctx, "alice", []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, snippets, 1, "same point ID must overwrite, not duplicate")
	assert.Equal(t, "second version", snippets[0].Content)
}

func TestQdrantIndex_EnsureCollectionIdempotent(t *testing.T) {
	idx := newIntegrationIndex(t, "it_ensure_twice")

	// Second call must not fail on the existing collection or index.
	require.NoError(t, idx.EnsureCollection(context.Background()))
}

func TestQdrantIndex_HealthyAgainstLiveServer(t *testing.T) {
	idx := newIntegrationIndex(t, "it_healthy")

	require.NoError(t, idx.Healthy(context.Background()))
	// Second call inside the cache window stays nil.
	require.NoError(t, idx.Healthy(context.Background()))
}
