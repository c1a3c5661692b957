package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestManager(t *testing.T, provider EmbeddingProvider) *Manager {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "memory.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	m, err := NewManager(Config{
		DBPath:            dbPath,
		Logger:            logger,
		EmbeddingProvider: provider,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewManager(t *testing.T) {
	t.Run("with embedding provider", func(t *testing.T) {
		m := createTestManager(t, newMockEmbeddingProvider(64))
		assert.True(t, m.SemanticSearchAvailable())
	})

	t.Run("without embedding provider", func(t *testing.T) {
		m := createTestManager(t, nil)
		assert.False(t, m.SemanticSearchAvailable())
	})

	t.Run("empty db path is an error", func(t *testing.T) {
		_, err := NewManager(Config{Logger: zerolog.Nop()})
		assert.Error(t, err)
	})
}

func TestStoreAndList(t *testing.T) {
	m := createTestManager(t, newMockEmbeddingProvider(64))
	ctx := context.Background()

	record, err := m.Store(ctx, "alice", "has a dog named Max")
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "alice", record.UserID)

	_, err = m.Store(ctx, "alice", "prefers lights at 50% brightness at night")
	require.NoError(t, err)
	_, err = m.Store(ctx, "bob", "works from home on Mondays")
	require.NoError(t, err)

	t.Run("list is scoped to the user", func(t *testing.T) {
		records, err := m.List(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, records, 2)

		records, err = m.List(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "works from home on Mondays", records[0].Content)
	})

	t.Run("count per user", func(t *testing.T) {
		count, err := m.Count(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := m.Store(ctx, "alice", "   ")
		assert.Error(t, err)
	})

	t.Run("empty user rejected", func(t *testing.T) {
		_, err := m.Store(ctx, "", "something")
		assert.Error(t, err)
	})
}

func TestRetrieve(t *testing.T) {
	m := createTestManager(t, newMockEmbeddingProvider(64))
	ctx := context.Background()

	_, err := m.Store(ctx, "alice", "has a dog named Max")
	require.NoError(t, err)
	_, err = m.Store(ctx, "alice", "planning a trip to Japan in spring")
	require.NoError(t, err)
	_, err = m.Store(ctx, "bob", "has a dog named Rex")
	require.NoError(t, err)

	t.Run("finds relevant records for the user", func(t *testing.T) {
		records, err := m.Retrieve(ctx, "alice", "dog", 5)
		require.NoError(t, err)
		require.NotEmpty(t, records)

		contents := make([]string, 0, len(records))
		for _, record := range records {
			assert.Equal(t, "alice", record.UserID)
			contents = append(contents, record.Content)
		}
		assert.Contains(t, contents, "has a dog named Max")
		assert.NotContains(t, contents, "has a dog named Rex")
	})

	t.Run("empty query returns no records", func(t *testing.T) {
		records, err := m.Retrieve(ctx, "alice", "  ", 5)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("limit caps results", func(t *testing.T) {
		records, err := m.Retrieve(ctx, "alice", "dog trip Japan spring Max", 1)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(records), 1)
	})

	t.Run("query with FTS operators does not break search", func(t *testing.T) {
		_, err := m.Retrieve(ctx, "alice", `dog AND (max OR "rex)`, 5)
		assert.NoError(t, err)
	})
}

func TestRetrieveKeywordOnly(t *testing.T) {
	m := createTestManager(t, nil)
	ctx := context.Background()

	_, err := m.Store(ctx, "alice", "bedroom lights should be dim at night")
	require.NoError(t, err)

	records, err := m.Retrieve(ctx, "alice", "bedroom lights", 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bedroom lights should be dim at night", records[0].Content)
}

func TestDelete(t *testing.T) {
	m := createTestManager(t, newMockEmbeddingProvider(64))
	ctx := context.Background()

	record, err := m.Store(ctx, "alice", "has a dog named Max")
	require.NoError(t, err)

	t.Run("other users cannot delete the record", func(t *testing.T) {
		err := m.Delete(ctx, "bob", record.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("owner deletes the record", func(t *testing.T) {
		require.NoError(t, m.Delete(ctx, "alice", record.ID))

		records, err := m.List(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("deleting again reports not found", func(t *testing.T) {
		err := m.Delete(ctx, "alice", record.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")
	logger := zerolog.Nop()
	ctx := context.Background()

	m, err := NewManager(Config{DBPath: dbPath, Logger: logger})
	require.NoError(t, err)
	_, err = m.Store(ctx, "alice", "lives in Seattle")
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := NewManager(Config{DBPath: dbPath, Logger: logger})
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "lives in Seattle", records[0].Content)
}

func TestMergeScores(t *testing.T) {
	hits := mergeScores(
		map[string]float64{"a": 0.9, "b": 0.3},
		map[string]float64{"b": 4.0, "c": 2.0},
	)
	scores := make(map[string]float64, len(hits))
	for _, hit := range hits {
		scores[hit.recordID] = hit.score
	}
	// a: vector only, b: both legs, c: keyword only
	assert.InDelta(t, 0.7, scores["a"], 0.001)
	assert.Greater(t, scores["b"], scores["c"])
	assert.InDelta(t, 0.15, scores["c"], 0.001)
}
