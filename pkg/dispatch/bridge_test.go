package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	id      string
	actions []Action
	err     error
}

func (p *staticProvider) ID() string { return p.id }

func (p *staticProvider) Actions(context.Context) ([]Action, error) {
	return p.actions, p.err
}

func okHandler(result interface{}) ActionHandler {
	return func(context.Context, map[string]interface{}) (interface{}, error) {
		return result, nil
	}
}

func countingHandler(calls *int, result interface{}) ActionHandler {
	return func(context.Context, map[string]interface{}) (interface{}, error) {
		*calls++
		return result, nil
	}
}

func newLoadedBridge(t *testing.T, providers ...CapabilityProvider) *Bridge {
	t.Helper()
	bridge := NewBridge()
	bridge.Load(context.Background(), providers)
	return bridge
}

func TestBridgeLoad(t *testing.T) {
	t.Run("registers actions from all providers", func(t *testing.T) {
		bridge := newLoadedBridge(t,
			&staticProvider{id: "assist", actions: []Action{
				{Name: "HassTurnOn", Description: "Turn a device on", Handler: okHandler("on")},
				{Name: "HassTurnOff", Description: "Turn a device off", Handler: okHandler("off")},
			}},
			&staticProvider{id: "todo", actions: []Action{
				{Name: "HassListAddItem", Description: "Add an item to a list", Handler: okHandler("added")},
			}},
		)
		assert.Equal(t, 3, bridge.Count())
		assert.Equal(t, []string{"HassListAddItem", "HassTurnOff", "HassTurnOn"}, bridge.ActionNames())
	})

	t.Run("failed provider is skipped, others still load", func(t *testing.T) {
		bridge := newLoadedBridge(t,
			&staticProvider{id: "broken", err: errors.New("unavailable")},
			&staticProvider{id: "assist", actions: []Action{
				{Name: "GetLiveContext", Handler: okHandler("context")},
			}},
		)
		assert.Equal(t, 1, bridge.Count())
	})

	t.Run("duplicate names keep the latest registration", func(t *testing.T) {
		bridge := newLoadedBridge(t,
			&staticProvider{id: "first", actions: []Action{
				{Name: "GetLiveContext", Handler: okHandler("from first")},
			}},
			&staticProvider{id: "second", actions: []Action{
				{Name: "GetLiveContext", Handler: okHandler("from second")},
			}},
		)
		result := bridge.Dispatch(context.Background(), "GetLiveContext", nil)
		assert.Equal(t, map[string]interface{}{"result": "from second"}, result)
	})

	t.Run("reload replaces prior registry", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Handler: okHandler("on")},
		}})
		bridge.Load(context.Background(), []CapabilityProvider{
			&staticProvider{id: "todo", actions: []Action{
				{Name: "HassListAddItem", Handler: okHandler("added")},
			}},
		})
		assert.Equal(t, []string{"HassListAddItem"}, bridge.ActionNames())
	})
}

func TestBridgeDispatch(t *testing.T) {
	t.Run("maps handler result to map form", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassGetState", Handler: okHandler(map[string]interface{}{"state": "on"})},
			{Name: "GetLiveContext", Handler: okHandler(42)},
		}})

		result := bridge.Dispatch(context.Background(), "HassGetState", map[string]interface{}{"name": "kitchen light"})
		assert.Equal(t, map[string]interface{}{"state": "on"}, result)

		result = bridge.Dispatch(context.Background(), "GetLiveContext", nil)
		assert.Equal(t, map[string]interface{}{"result": "42"}, result)
	})

	t.Run("unknown action lists available names", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Handler: okHandler("on")},
			{Name: "GetLiveContext", Handler: okHandler("context")},
		}})

		result := bridge.Dispatch(context.Background(), "HassMakeCoffee", map[string]interface{}{"name": "espresso"})
		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "'HassMakeCoffee' not found")
		assert.Contains(t, errMsg, "GetLiveContext, HassTurnOn")
	})

	t.Run("name-requiring intent without name never reaches the handler", func(t *testing.T) {
		calls := 0
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Handler: countingHandler(&calls, "on")},
		}})

		result := bridge.Dispatch(context.Background(), "HassTurnOn", map[string]interface{}{"domain": "light"})
		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "requires a 'name' parameter")
		assert.Contains(t, errMsg, "device name")
		assert.Equal(t, 0, calls)
	})

	t.Run("list intents get list-name guidance", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "todo", actions: []Action{
			{Name: "HassListAddItem", Handler: okHandler("added")},
		}})

		result := bridge.Dispatch(context.Background(), "HassListAddItem", map[string]interface{}{"item": "milk"})
		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "list name")
	})

	t.Run("schema validation rejects bad arguments before the handler", func(t *testing.T) {
		calls := 0
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{
				Name:    "HassLightSet",
				Handler: countingHandler(&calls, "set"),
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":       map[string]interface{}{"type": "string"},
						"brightness": map[string]interface{}{"type": "integer", "maximum": 100},
					},
				},
			},
		}})

		result := bridge.Dispatch(context.Background(), "HassLightSet", map[string]interface{}{
			"name":       "bedroom light",
			"brightness": 150,
		})
		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "Invalid arguments for 'HassLightSet'")
		assert.Equal(t, 0, calls)
	})
}

func TestBridgeSceneHints(t *testing.T) {
	sceneErr := errors.New("Failed to call turn_on for scene.movie_night: scenes are not valid targets")

	t.Run("suggests direct action when one exists", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
				return nil, sceneErr
			}},
			{Name: "movie_night", Handler: okHandler("activated")},
		}})

		result := bridge.Dispatch(context.Background(), "HassTurnOn", map[string]interface{}{"name": "movie night"})
		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "Use action 'movie_night' directly")
	})

	t.Run("generic hint when no direct action exists", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
				return nil, sceneErr
			}},
		}})

		result := bridge.Dispatch(context.Background(), "HassTurnOn", map[string]interface{}{"name": "movie night"})
		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "Scenes cannot be activated with HassTurnOn")
	})

	t.Run("unrelated handler errors pass through verbatim", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
				return nil, errors.New("device offline")
			}},
		}})

		result := bridge.Dispatch(context.Background(), "HassTurnOn", map[string]interface{}{"name": "porch light"})
		assert.Equal(t, map[string]interface{}{"error": "device offline"}, result)
	})
}

func TestBridgeHandleToolUse(t *testing.T) {
	t.Run("routes by tool_name and strips it from action args", func(t *testing.T) {
		var seenArgs map[string]interface{}
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Handler: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
				seenArgs = args
				return "ok", nil
			}},
		}})

		result := bridge.HandleToolUse(context.Background(), map[string]interface{}{
			"tool_name": "HassTurnOn",
			"name":      "kitchen light",
			"domain":    "light",
		})
		assert.Equal(t, map[string]interface{}{"result": "ok"}, result)
		assert.Equal(t, map[string]interface{}{"name": "kitchen light", "domain": "light"}, seenArgs)
	})

	t.Run("missing tool_name is an error", func(t *testing.T) {
		bridge := newLoadedBridge(t)
		result := bridge.HandleToolUse(context.Background(), map[string]interface{}{"name": "kitchen light"})
		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "'tool_name' parameter is required")
	})
}

func TestBridgeDescribe(t *testing.T) {
	t.Run("empty bridge", func(t *testing.T) {
		assert.Equal(t, "No platform actions available", NewBridge().Describe())
	})

	t.Run("sorted listing with descriptions", func(t *testing.T) {
		bridge := newLoadedBridge(t, &staticProvider{id: "assist", actions: []Action{
			{Name: "HassTurnOn", Description: "Turn a device on", Handler: okHandler("on")},
			{Name: "GetLiveContext", Handler: okHandler("context")},
		}})
		desc := bridge.Describe()
		assert.Contains(t, desc, "- GetLiveContext: No description")
		assert.Contains(t, desc, "- HassTurnOn: Turn a device on")
	})
}
