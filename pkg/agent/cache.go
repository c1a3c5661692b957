package agent

import (
	"context"
	"fmt"
	"sync"

	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/internal/observability"
	"github.com/hearthd/hearth/pkg/backend"
	"github.com/hearthd/hearth/pkg/dispatch"
	"github.com/hearthd/hearth/pkg/memory"
	"github.com/hearthd/hearth/pkg/session"
)

// ClientFactory creates model runtime clients. *backend.SessionFactory
// is the production implementation.
type ClientFactory interface {
	NewModelClient(ctx context.Context) (backend.ModelClient, error)
}

// CacheConfig holds the pieces shared by every built agent.
type CacheConfig struct {
	Factory      ClientFactory
	Sessions     *session.Store
	Memory       *memory.Manager // nil when memory is unavailable
	Bridge       *dispatch.Bridge
	ModelID      string
	SystemPrompt string
	// Guidelines appended to the memory instructions; empty selects
	// DefaultMemoryGuidelines.
	MemoryGuidelines string
	WindowSize       int
	MemoryEnabled    bool
	ControlEnabled   bool
	// Set when Memory is nil to explain why in stats output.
	MemoryUnavailableReason string
}

// Stats is a point-in-time snapshot of the cache and its backends.
type Stats struct {
	MemoryEnabled            bool   `json:"memory_enabled"`
	LongTermBackendAvailable bool   `json:"long_term_backend_available"`
	CallerUserID             string `json:"caller_user_id"`
	CachedAgentCount         int    `json:"cached_agent_count"`
	CachedSessionCount       int    `json:"cached_session_count"`
	ToolCount                int    `json:"tool_count"`
	SessionStoragePath       string `json:"session_storage_path"`
	MemoryStoragePath        string `json:"memory_storage_path,omitempty"`
	MemoryUnavailableReason  string `json:"memory_unavailable_reason,omitempty"`
}

// Cache builds agents on demand and keys them by user id alone. All of
// a user's conversations share one agent, one transcript and one memory
// scope; a conversation id is never part of the key. Same-user build
// races are prevented by the caller running builds on the user's queue
// lane, not by this cache.
type Cache struct {
	cfg    CacheConfig
	agents map[string]*Agent
	client backend.ModelClient
	mu     sync.Mutex
}

// NewCache creates an empty agent cache.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.MemoryGuidelines == "" {
		cfg.MemoryGuidelines = DefaultMemoryGuidelines
	}
	return &Cache{
		cfg:    cfg,
		agents: make(map[string]*Agent),
	}
}

func (c *Cache) modelClient(ctx context.Context) (backend.ModelClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := c.cfg.Factory.NewModelClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	c.client = client
	return client, nil
}

// GetOrBuild returns the user's cached agent, building one on first
// access. Memory is effectively enabled only when the long-term backend
// is actually available.
func (c *Cache) GetOrBuild(ctx context.Context, userID string) (*Agent, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	c.mu.Lock()
	if a, ok := c.agents[userID]; ok {
		c.mu.Unlock()
		observability.RecordAgentCacheHit()
		return a, nil
	}
	c.mu.Unlock()

	a, err := c.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.agents[userID]; ok {
		// Lost a cross-user race; keep the first one in.
		c.mu.Unlock()
		return existing, nil
	}
	c.agents[userID] = a
	count := len(c.agents)
	c.mu.Unlock()

	observability.RecordAgentBuild()
	observability.SetCachedAgents(count)
	log.Info().
		Str("user_id", userID).
		Str("model", a.ModelID()).
		Int("tools", a.ToolCount()).
		Int("window_size", c.cfg.WindowSize).
		Msg("Agent built")
	return a, nil
}

func (c *Cache) build(ctx context.Context, userID string) (*Agent, error) {
	client, err := c.modelClient(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := c.cfg.Sessions.GetOrCreate(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session for user %s: %w", userID, err)
	}

	memoryActive := c.cfg.MemoryEnabled && c.cfg.Memory != nil
	controlActive := c.cfg.ControlEnabled && c.cfg.Bridge != nil && c.cfg.Bridge.Count() > 0

	var tools []bedrocktypes.Tool
	handlers := make(map[string]ToolFunc)
	if memoryActive {
		memTool := memory.NewTool(c.cfg.Memory, userID)
		tools = append(tools, memory.ToolSpec())
		handlers[memory.ToolName] = memTool.Handle
	}
	if controlActive {
		tools = append(tools, c.cfg.Bridge.ToolSpec())
		handlers[dispatch.ToolName] = c.cfg.Bridge.HandleToolUse
	}

	return &Agent{
		userID:       userID,
		model:        backend.NewModel(client, c.cfg.ModelID),
		systemPrompt: enhancedSystemPrompt(c.cfg.SystemPrompt, memoryActive, userID, c.cfg.MemoryGuidelines, controlActive),
		tools:        tools,
		handlers:     handlers,
		session:      sess,
		windowSize:   c.cfg.WindowSize,
	}, nil
}

// BuildEphemeral creates a single-use agent with no session, no tools
// and an optional model override. Used for one-shot cognitive tasks
// that must not touch any user's history.
func (c *Cache) BuildEphemeral(ctx context.Context, modelID string) (*Agent, error) {
	client, err := c.modelClient(ctx)
	if err != nil {
		return nil, err
	}
	if modelID == "" {
		modelID = c.cfg.ModelID
	}
	return &Agent{
		model:        backend.NewModel(client, modelID),
		systemPrompt: c.cfg.SystemPrompt,
	}, nil
}

// ClearUser evicts the user's agent and session handle. The transcript
// file and memory records stay intact; the next GetOrBuild reloads
// them.
func (c *Cache) ClearUser(userID string) {
	c.mu.Lock()
	_, had := c.agents[userID]
	delete(c.agents, userID)
	count := len(c.agents)
	c.mu.Unlock()

	c.cfg.Sessions.Drop(userID)
	observability.SetCachedAgents(count)
	if had {
		log.Info().Str("user_id", userID).Msg("Agent cache cleared for user")
	}
}

// ClearAll evicts every cached agent and session handle.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	count := len(c.agents)
	c.agents = make(map[string]*Agent)
	c.mu.Unlock()

	c.cfg.Sessions.DropAll()
	observability.SetCachedAgents(0)
	log.Info().Int("evicted", count).Msg("Agent cache cleared")
}

// ForceRebuild evicts and rebuilds the user's agent, reloading the
// persisted transcript. Used after the backend rejects a transcript as
// corrupt.
func (c *Cache) ForceRebuild(ctx context.Context, userID string) (*Agent, error) {
	c.ClearUser(userID)
	observability.RecordAgentRebuild()
	log.Warn().Str("user_id", userID).Msg("Forcing agent rebuild")
	return c.GetOrBuild(ctx, userID)
}

// CachedAgentCount returns the number of cached agents.
func (c *Cache) CachedAgentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.agents)
}

// Stats reports the cache state as seen by callerUserID.
func (c *Cache) Stats(callerUserID string) Stats {
	c.mu.Lock()
	agentCount := len(c.agents)
	cachedAgent := c.agents[callerUserID]
	c.mu.Unlock()

	stats := Stats{
		MemoryEnabled:            c.cfg.MemoryEnabled,
		LongTermBackendAvailable: c.cfg.Memory != nil,
		CallerUserID:             callerUserID,
		CachedAgentCount:         agentCount,
		CachedSessionCount:       c.cfg.Sessions.Count(),
		SessionStoragePath:       c.cfg.Sessions.Dir(),
		MemoryUnavailableReason:  c.cfg.MemoryUnavailableReason,
	}
	if c.cfg.Memory != nil {
		stats.MemoryStoragePath = c.cfg.Memory.DBPath()
	}
	if cachedAgent != nil {
		stats.ToolCount = cachedAgent.ToolCount()
	}
	return stats
}
