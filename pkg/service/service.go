// Package service is the top-level request surface: conversation turns,
// one-shot cognitive tasks and administrative cache operations. It owns
// the concurrency discipline: memory-backed conversation turns run
// serialized on the caller's queue lane, everything else runs inline.
package service

import (
	"sync"

	"github.com/hearthd/hearth/pkg/agent"
	"github.com/hearthd/hearth/pkg/taskqueue"
	"github.com/hearthd/hearth/pkg/vision"
)

// DefaultUserID scopes sessions and memory when the platform supplies
// no caller identity.
const DefaultUserID = "default_user"

// Config wires a Service.
type Config struct {
	Cache  *agent.Cache
	Queue  *taskqueue.Queue
	Vision *vision.Loader
	// MemoryEnabled mirrors the cache configuration; it decides whether
	// session-backed invocations go through the queue.
	MemoryEnabled bool
}

// Service handles conversation and task requests.
type Service struct {
	cache         *agent.Cache
	queue         *taskqueue.Queue
	vision        *vision.Loader
	memoryEnabled bool

	ephemeralOnce sync.Once
	ephemeral     *agent.Agent
	ephemeralErr  error
}

// New creates a Service.
func New(cfg Config) *Service {
	return &Service{
		cache:         cfg.Cache,
		queue:         cfg.Queue,
		vision:        cfg.Vision,
		memoryEnabled: cfg.MemoryEnabled,
	}
}
