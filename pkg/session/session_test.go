package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth/pkg/backend"
)

func TestStoreGetOrCreate(t *testing.T) {
	t.Run("caches handle per user", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		first, err := store.GetOrCreate("alice")
		require.NoError(t, err)
		second, err := store.GetOrCreate("alice")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, store.Count())

		_, err = store.GetOrCreate("bob")
		require.NoError(t, err)
		assert.Equal(t, 2, store.Count())
	})

	t.Run("transcript survives handle drop", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		s, err := store.GetOrCreate("alice")
		require.NoError(t, err)
		require.NoError(t, s.Append("user", "turn on the porch light"))
		require.NoError(t, s.Append("assistant", "The porch light is on."))

		store.Drop("alice")
		assert.Equal(t, 0, store.Count())

		reloaded, err := store.GetOrCreate("alice")
		require.NoError(t, err)
		turns := reloaded.Turns()
		require.Len(t, turns, 2)
		assert.Equal(t, "user", turns[0].Role)
		assert.Equal(t, "turn on the porch light", turns[0].Text)
		assert.Equal(t, "assistant", turns[1].Role)
	})
}

func TestSessionAppendAndMessages(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	s, err := store.GetOrCreate("alice")
	require.NoError(t, err)

	require.NoError(t, s.Append("user", "one"))
	require.NoError(t, s.Append("assistant", "two"))
	require.NoError(t, s.Append("user", "three"))
	require.NoError(t, s.Append("assistant", "four"))

	t.Run("full history without a window", func(t *testing.T) {
		messages := s.Messages(0)
		require.Len(t, messages, 4)
		assert.Equal(t, "one", backend.ExtractText(&messages[0]))
		assert.Equal(t, "four", backend.ExtractText(&messages[3]))
	})

	t.Run("window keeps only the newest turns", func(t *testing.T) {
		messages := s.Messages(2)
		require.Len(t, messages, 2)
		assert.Equal(t, "three", backend.ExtractText(&messages[0]))
		assert.Equal(t, "four", backend.ExtractText(&messages[1]))
	})
}

func TestSessionLoadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.jsonl")
	content := `{"role":"user","text":"hello","timestamp":"2026-08-01T10:00:00Z"}
{not json at all
{"role":"assistant","text":"hi there","timestamp":"2026-08-01T10:00:01Z"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store, err := NewStore(dir)
	require.NoError(t, err)
	s, err := store.GetOrCreate("alice")
	require.NoError(t, err)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "hello", turns[0].Text)
	assert.Equal(t, "hi there", turns[1].Text)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "alice", sanitizeID("alice"))
	assert.Equal(t, "a_b_c", sanitizeID("a/b/c"))
	assert.Equal(t, "_", sanitizeID(""))
	assert.Equal(t, "_", sanitizeID(".."))
	assert.Equal(t, "user-42.home", sanitizeID("user-42.home"))
}
