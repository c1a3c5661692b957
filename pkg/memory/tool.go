package memory

import (
	"context"
	"errors"
	"fmt"

	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/hearthd/hearth/pkg/backend"
)

// ToolName is the model-facing name of the memory tool.
const ToolName = "memory"

const toolDescription = `Store and retrieve long-term memories about the user.

Actions:
- store: Save an important fact (requires 'content')
- retrieve: Search memories relevant to a query (requires 'query', optional 'limit')
- list: List all stored memories
- delete: Remove a memory by id (requires 'record_id')

Memories persist across conversations and restarts. Use 'retrieve' before
answering questions that may depend on earlier context.`

// ToolSpec builds the model-facing declaration of the memory tool.
func ToolSpec() bedrocktypes.Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"store", "retrieve", "list", "delete"},
				"description": "The memory operation to perform",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Fact to store (for action=store)",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search text (for action=retrieve)",
			},
			"record_id": map[string]interface{}{
				"type":        "string",
				"description": "Memory record id (for action=delete)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results to return (for action=retrieve, default 5)",
			},
			"user_id": map[string]interface{}{
				"type":        "string",
				"description": "Override the user whose memory is accessed (rarely needed)",
			},
		},
		"required": []string{"action"},
	}
	return backend.ToolSpec(ToolName, toolDescription, schema)
}

// Tool binds a manager to a default user id and handles tool calls.
type Tool struct {
	manager       *Manager
	defaultUserID string
}

// NewTool creates a memory tool scoped to defaultUserID. A tool call may
// name another user_id explicitly; otherwise every operation targets the
// default user.
func NewTool(manager *Manager, defaultUserID string) *Tool {
	return &Tool{manager: manager, defaultUserID: defaultUserID}
}

// Handle executes one memory tool call and returns the tool result map.
func (t *Tool) Handle(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	action, _ := args["action"].(string)
	userID, _ := args["user_id"].(string)
	if userID == "" {
		userID = t.defaultUserID
	}

	switch action {
	case "store":
		content, _ := args["content"].(string)
		record, err := t.manager.Store(ctx, userID, content)
		if err != nil {
			return errResult(err)
		}
		return map[string]interface{}{
			"result":    "Memory stored.",
			"record_id": record.ID,
		}

	case "retrieve":
		query, _ := args["query"].(string)
		limit := intArg(args, "limit", 5)
		records, err := t.manager.Retrieve(ctx, userID, query, limit)
		if err != nil {
			return errResult(err)
		}
		return map[string]interface{}{"memories": recordMaps(records)}

	case "list":
		records, err := t.manager.List(ctx, userID)
		if err != nil {
			return errResult(err)
		}
		return map[string]interface{}{"memories": recordMaps(records)}

	case "delete":
		recordID, _ := args["record_id"].(string)
		err := t.manager.Delete(ctx, userID, recordID)
		if errors.Is(err, ErrRecordNotFound) {
			return map[string]interface{}{"error": fmt.Sprintf("Memory record '%s' not found.", recordID)}
		}
		if err != nil {
			return errResult(err)
		}
		return map[string]interface{}{"result": "Memory deleted."}

	default:
		return map[string]interface{}{
			"error": fmt.Sprintf("Unknown memory action '%s'. Valid actions: store, retrieve, list, delete.", action),
		}
	}
}

func errResult(err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error()}
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func recordMaps(records []Record) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		entry := map[string]interface{}{
			"id":         record.ID,
			"content":    record.Content,
			"created_at": record.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if record.Score > 0 {
			entry["score"] = record.Score
		}
		out = append(out, entry)
	}
	return out
}
