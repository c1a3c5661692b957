package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hearthd/hearth/internal/observability"
)

// ActionHandler executes a platform intent with the given arguments.
type ActionHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Action is a platform intent registered with the bridge.
type Action struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	Handler     ActionHandler          `json:"-"`
}

// CapabilityProvider supplies a set of actions. Each provider maps to
// one platform capability surface (device intents, todo lists, live
// context queries).
type CapabilityProvider interface {
	ID() string
	Actions(ctx context.Context) ([]Action, error)
}

// Intents that operate on a specific device or list and are meaningless
// without a target name. Dispatch rejects them before the handler runs.
var intentsRequiringName = map[string]struct{}{
	"HassTurnOn":         {},
	"HassTurnOff":        {},
	"HassToggle":         {},
	"HassGetState":       {},
	"HassLightSet":       {},
	"HassSetPosition":    {},
	"HassMediaUnpause":   {},
	"HassMediaPause":     {},
	"HassMediaNext":      {},
	"HassMediaPrevious":  {},
	"HassSetVolume":      {},
	"HassListAddItem":    {},
	"HassListRemoveItem": {},
}

var sceneEntityPattern = regexp.MustCompile(`scene\.(\w+)`)

type registeredAction struct {
	action     Action
	providerID string
	schema     *gojsonschema.Schema
}

// Bridge routes dispatch calls to registered actions.
type Bridge struct {
	actions   map[string]registeredAction
	providers []string
	mu        sync.RWMutex
}

// NewBridge creates an empty bridge. Call Load before dispatching.
func NewBridge() *Bridge {
	return &Bridge{
		actions: make(map[string]registeredAction),
	}
}

// Load replaces the registry with the actions of the given providers.
// A provider that fails to enumerate its actions is skipped with a
// warning; the remaining providers still load. Duplicate action names
// across providers resolve to the last one registered.
func (b *Bridge) Load(ctx context.Context, providers []CapabilityProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.actions = make(map[string]registeredAction)
	b.providers = b.providers[:0]

	for _, provider := range providers {
		actions, err := provider.Actions(ctx)
		if err != nil {
			log.Warn().Err(err).Str("provider", provider.ID()).Msg("Failed to load capability provider")
			continue
		}
		b.providers = append(b.providers, provider.ID())

		for _, action := range actions {
			reg := registeredAction{action: action, providerID: provider.ID()}
			if action.InputSchema != nil {
				schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(action.InputSchema))
				if err != nil {
					log.Warn().Err(err).
						Str("provider", provider.ID()).
						Str("action", action.Name).
						Msg("Invalid action schema, registering without validation")
				} else {
					reg.schema = schema
				}
			}
			if prior, exists := b.actions[action.Name]; exists {
				log.Warn().
					Str("action", action.Name).
					Str("previous_provider", prior.providerID).
					Str("provider", provider.ID()).
					Msg("Duplicate action name, keeping latest registration")
			}
			b.actions[action.Name] = reg
			log.Debug().Str("action", action.Name).Str("provider", provider.ID()).Msg("Registered action")
		}
	}

	log.Info().
		Int("actions", len(b.actions)).
		Int("providers", len(b.providers)).
		Msg("Capability providers loaded")
}

// Count returns the number of registered actions.
func (b *Bridge) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.actions)
}

// ActionNames returns the registered action names in sorted order.
func (b *Bridge) ActionNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.actions))
	for name := range b.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a human-readable listing of the registered actions,
// suitable for embedding in the dispatch tool description.
func (b *Bridge) Describe() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.actions) == 0 {
		return "No platform actions available"
	}

	names := make([]string, 0, len(b.actions))
	for name := range b.actions {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"Available platform actions:"}
	for _, name := range names {
		desc := b.actions[name].action.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", name, desc))
	}
	return strings.Join(lines, "\n")
}

// Dispatch routes a call to the named action. The result is always a
// map; failures are reported under an "error" key rather than a Go
// error, because the map is relayed verbatim to the model as a tool
// result and the model can often correct its own mistake on the next
// turn.
func (b *Bridge) Dispatch(ctx context.Context, name string, args map[string]interface{}) map[string]interface{} {
	start := time.Now()
	result := b.dispatch(ctx, name, args)
	_, failed := result["error"]
	observability.RecordDispatch(name, time.Since(start), !failed)
	return result
}

func (b *Bridge) dispatch(ctx context.Context, name string, args map[string]interface{}) map[string]interface{} {
	if args == nil {
		args = map[string]interface{}{}
	}

	if _, required := intentsRequiringName[name]; required {
		target, _ := args["name"].(string)
		if target == "" {
			msg := fmt.Sprintf("Intent '%s' requires a 'name' parameter. ", name)
			if strings.HasPrefix(name, "HassList") {
				msg += "For list intents, provide the list name (e.g., name='Shopping List')."
			} else {
				msg += "For device control, provide the device name (e.g., name='kitchen light')."
			}
			log.Error().Str("action", name).Msg(msg)
			return map[string]interface{}{"error": msg}
		}
	}

	b.mu.RLock()
	reg, found := b.actions[name]
	available := make([]string, 0, len(b.actions))
	for actionName := range b.actions {
		available = append(available, actionName)
	}
	b.mu.RUnlock()

	if !found {
		sort.Strings(available)
		return map[string]interface{}{
			"error": fmt.Sprintf("Action '%s' not found. Available actions: %s", name, strings.Join(available, ", ")),
		}
	}

	if reg.schema != nil {
		if err := validateArgs(reg.schema, args); err != nil {
			return map[string]interface{}{
				"error": fmt.Sprintf("Invalid arguments for '%s': %s", name, err),
			}
		}
	}

	log.Debug().
		Str("action", name).
		Str("provider", reg.providerID).
		Interface("args", args).
		Msg("Dispatching action")

	result, err := reg.action.Handler(ctx, args)
	if err != nil {
		log.Error().Err(err).Str("action", name).Msg("Action handler failed")
		return b.classifyHandlerError(name, err, available)
	}

	if m, ok := result.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"result": fmt.Sprintf("%v", result)}
}

// classifyHandlerError turns a handler failure into a tool result with
// targeted guidance for the mistakes models make most often.
func (b *Bridge) classifyHandlerError(name string, err error, available []string) map[string]interface{} {
	msg := err.Error()

	if strings.Contains(msg, "Failed to call turn_on") && strings.Contains(msg, "scene.") {
		sceneName := "unknown"
		if match := sceneEntityPattern.FindStringSubmatch(msg); match != nil {
			sceneName = match[1]
		}
		for _, actionName := range available {
			if actionName == sceneName {
				return map[string]interface{}{
					"error": fmt.Sprintf("Cannot use HassTurnOn for scenes. Use action '%s' directly instead.", sceneName),
				}
			}
		}
		return map[string]interface{}{
			"error": "Scenes cannot be activated with HassTurnOn. Try using the scene name as the action directly, or check available actions with GetLiveContext.",
		}
	}

	return map[string]interface{}{"error": msg}
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}
		return fmt.Errorf("%s", strings.Join(details, "; "))
	}
	return nil
}
