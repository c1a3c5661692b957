package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTool(t *testing.T) {
	m := createTestManager(t, newMockEmbeddingProvider(64))
	tool := NewTool(m, "alice")
	ctx := context.Background()

	t.Run("store returns the record id", func(t *testing.T) {
		result := tool.Handle(ctx, map[string]interface{}{
			"action":  "store",
			"content": "prefers Italian food",
		})
		assert.Equal(t, "Memory stored.", result["result"])
		assert.NotEmpty(t, result["record_id"])
	})

	t.Run("retrieve returns stored memories", func(t *testing.T) {
		result := tool.Handle(ctx, map[string]interface{}{
			"action": "retrieve",
			"query":  "Italian food",
			"limit":  float64(3),
		})
		memories, ok := result["memories"].([]map[string]interface{})
		require.True(t, ok)
		require.NotEmpty(t, memories)
		assert.Equal(t, "prefers Italian food", memories[0]["content"])
	})

	t.Run("list defaults to the bound user", func(t *testing.T) {
		result := tool.Handle(ctx, map[string]interface{}{"action": "list"})
		memories, ok := result["memories"].([]map[string]interface{})
		require.True(t, ok)
		assert.Len(t, memories, 1)
	})

	t.Run("explicit user_id overrides the default", func(t *testing.T) {
		tool.Handle(ctx, map[string]interface{}{
			"action":  "store",
			"content": "likes jazz",
			"user_id": "bob",
		})
		result := tool.Handle(ctx, map[string]interface{}{
			"action":  "list",
			"user_id": "bob",
		})
		memories, ok := result["memories"].([]map[string]interface{})
		require.True(t, ok)
		require.Len(t, memories, 1)
		assert.Equal(t, "likes jazz", memories[0]["content"])
	})

	t.Run("delete removes the record", func(t *testing.T) {
		stored := tool.Handle(ctx, map[string]interface{}{
			"action":  "store",
			"content": "temporary note",
		})
		recordID := stored["record_id"].(string)

		result := tool.Handle(ctx, map[string]interface{}{
			"action":    "delete",
			"record_id": recordID,
		})
		assert.Equal(t, "Memory deleted.", result["result"])

		result = tool.Handle(ctx, map[string]interface{}{
			"action":    "delete",
			"record_id": recordID,
		})
		assert.Contains(t, result["error"], "not found")
	})

	t.Run("unknown action is an error", func(t *testing.T) {
		result := tool.Handle(ctx, map[string]interface{}{"action": "compact"})
		assert.Contains(t, result["error"], "Unknown memory action")
	})

	t.Run("store without content is an error", func(t *testing.T) {
		result := tool.Handle(ctx, map[string]interface{}{"action": "store"})
		assert.NotEmpty(t, result["error"])
	})
}
