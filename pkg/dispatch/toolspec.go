package dispatch

import (
	"context"
	"fmt"

	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/hearthd/hearth/pkg/backend"
)

// ToolName is the single tool the model sees for platform control.
const ToolName = "home_control"

// ToolSpec builds the model-facing declaration of the dispatch surface.
// The description embeds the current action listing so the model knows
// what it can route to without a discovery round trip.
func (b *Bridge) ToolSpec() bedrocktypes.Tool {
	description := fmt.Sprintf(`Control smart home devices and query their state.

This tool dispatches to specific platform intents. You MUST provide:
1. tool_name: The intent name (e.g., 'HassTurnOn', 'HassGetState', 'HassListAddItem')
2. name: The device/list name (REQUIRED for most intents)
3. Additional parameters based on the intent type

%s

Examples:
- Turn on: tool_name='HassTurnOn', name='kitchen light', domain='light'
- Get state: tool_name='HassGetState', name='bedroom temperature'
- Add to list: tool_name='HassListAddItem', name='Shopping List', item='milk'
- List all: tool_name='GetLiveContext'`, b.Describe())

	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tool_name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the platform intent (e.g., 'HassTurnOn', 'HassGetState', 'HassListAddItem')",
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Device or list name to control (REQUIRED for most intents)",
			},
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "Device domain (e.g., 'light', 'switch', 'fan')",
			},
			"brightness": map[string]interface{}{
				"type":        "integer",
				"description": "Light brightness 0-100 (for HassLightSet)",
			},
			"color": map[string]interface{}{
				"type":        "string",
				"description": "Color name or value (for HassLightSet)",
			},
			"item": map[string]interface{}{
				"type":        "string",
				"description": "Item to add or remove (for HassListAddItem, HassListRemoveItem)",
			},
		},
		"required":             []string{"tool_name"},
		"additionalProperties": true,
	}

	return backend.ToolSpec(ToolName, description, schema)
}

// HandleToolUse adapts a model tool call to a dispatch. The tool_name
// argument selects the action; everything else passes through as action
// arguments.
func (b *Bridge) HandleToolUse(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	name, _ := args["tool_name"].(string)
	if name == "" {
		return map[string]interface{}{
			"error": "The 'tool_name' parameter is required. " + b.Describe(),
		}
	}
	actionArgs := make(map[string]interface{}, len(args))
	for key, value := range args {
		if key == "tool_name" {
			continue
		}
		actionArgs[key] = value
	}
	return b.Dispatch(ctx, name, actionArgs)
}
