package agent

import (
	"context"
	"encoding/json"
	"fmt"

	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/pkg/backend"
	"github.com/hearthd/hearth/pkg/session"
)

// maxToolTurns bounds the converse loop so a model stuck calling tools
// cannot spin forever.
const maxToolTurns = 10

// ToolFunc executes one tool call. The returned map is relayed to the
// model as the tool result; failures go under an "error" key.
type ToolFunc func(ctx context.Context, args map[string]interface{}) map[string]interface{}

// Agent is a ready-to-invoke conversational agent.
type Agent struct {
	userID       string
	model        *backend.Model
	systemPrompt string
	tools        []bedrocktypes.Tool
	handlers     map[string]ToolFunc
	session      *session.Session
	windowSize   int
}

// UserID returns the owning user id, or "" for an ephemeral agent.
func (a *Agent) UserID() string {
	return a.userID
}

// ModelID returns the model this agent invokes.
func (a *Agent) ModelID() string {
	return a.model.ID()
}

// ToolCount returns the number of tools exposed to the model.
func (a *Agent) ToolCount() int {
	return len(a.tools)
}

// HasSession reports whether the agent persists its transcript.
func (a *Agent) HasSession() bool {
	return a.session != nil
}

// Invoke runs one user turn: history is replayed through the sliding
// window, tool calls are executed until the model stops asking for
// them, and the user text plus the final assistant text are persisted.
// Tool traffic and images never enter the durable transcript.
func (a *Agent) Invoke(ctx context.Context, userText string, images []bedrocktypes.ContentBlock) (string, error) {
	var messages []bedrocktypes.Message
	if a.session != nil {
		messages = a.session.Messages(a.windowSize)
	}

	blocks := make([]bedrocktypes.ContentBlock, 0, len(images)+1)
	blocks = append(blocks, backend.TextBlock(userText))
	blocks = append(blocks, images...)
	messages = append(messages, backend.UserMessage(blocks...))

	var reply string
	for turn := 0; ; turn++ {
		if turn >= maxToolTurns {
			return "", fmt.Errorf("tool loop exceeded %d turns", maxToolTurns)
		}

		assistantMsg, stopReason, err := a.model.Converse(ctx, messages, a.systemPrompt, a.tools)
		if err != nil {
			return "", err
		}

		if stopReason != bedrocktypes.StopReasonToolUse {
			reply = backend.ExtractText(assistantMsg)
			break
		}

		messages = append(messages, *assistantMsg)
		results := make([]bedrocktypes.ContentBlock, 0, 1)
		for _, use := range backend.ToolUses(assistantMsg) {
			results = append(results, a.runTool(ctx, use))
		}
		if len(results) == 0 {
			return "", fmt.Errorf("model requested tool use without a tool call")
		}
		messages = append(messages, backend.UserMessage(results...))
	}

	if a.session != nil {
		if err := a.session.Append("user", userText); err != nil {
			return "", fmt.Errorf("failed to persist user turn: %w", err)
		}
		if err := a.session.Append("assistant", reply); err != nil {
			return "", fmt.Errorf("failed to persist assistant turn: %w", err)
		}
	}
	return reply, nil
}

func (a *Agent) runTool(ctx context.Context, use bedrocktypes.ToolUseBlock) bedrocktypes.ContentBlock {
	name := ""
	if use.Name != nil {
		name = *use.Name
	}
	toolUseID := ""
	if use.ToolUseId != nil {
		toolUseID = *use.ToolUseId
	}

	handler, found := a.handlers[name]
	if !found {
		log.Warn().Str("user_id", a.userID).Str("tool", name).Msg("Model requested unknown tool")
		return backend.ToolResultBlock(toolUseID, fmt.Sprintf("Unknown tool '%s'", name), true)
	}

	args, err := decodeToolInput(use)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("Failed to decode tool input")
		return backend.ToolResultBlock(toolUseID, fmt.Sprintf("Invalid tool input: %s", err), true)
	}

	log.Debug().Str("user_id", a.userID).Str("tool", name).Interface("args", args).Msg("Executing tool")
	result := handler(ctx, args)

	_, failed := result["error"]
	rendered, err := json.Marshal(result)
	if err != nil {
		return backend.ToolResultBlock(toolUseID, fmt.Sprintf("Failed to encode tool result: %s", err), true)
	}
	return backend.ToolResultBlock(toolUseID, string(rendered), failed)
}

// decodeToolInput normalizes the model's tool arguments to plain JSON
// types so handlers see float64 numbers and map/slice containers.
func decodeToolInput(use bedrocktypes.ToolUseBlock) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if use.Input == nil {
		return args, nil
	}
	var raw interface{}
	if err := use.Input.UnmarshalSmithyDocument(&raw); err != nil {
		return nil, err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	return args, nil
}
