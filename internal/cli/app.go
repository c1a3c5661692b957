package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/logger"
	"github.com/hearthd/hearth/pkg/agent"
	"github.com/hearthd/hearth/pkg/backend"
	"github.com/hearthd/hearth/pkg/dispatch"
	"github.com/hearthd/hearth/pkg/memory"
	"github.com/hearthd/hearth/pkg/service"
	"github.com/hearthd/hearth/pkg/session"
	"github.com/hearthd/hearth/pkg/taskqueue"
	"github.com/hearthd/hearth/pkg/vision"
)

// app bundles everything a command needs at runtime.
type app struct {
	cfg     *config.Config
	service *service.Service
	cleanup func()
}

// buildApp loads configuration and assembles the full service stack.
// The long-term memory backend failing to open is not fatal: the
// assistant still runs, stats report the reason, and the memory tool is
// simply absent.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	factory := backend.NewSessionFactory(
		cfg.Backend.AccessKeyID,
		cfg.Backend.SecretAccessKey,
		cfg.Backend.Region,
	)

	store, err := session.NewStore(cfg.Sessions.StoragePath)
	if err != nil {
		appLogger.Close()
		return nil, err
	}

	var mem *memory.Manager
	memoryReason := ""
	if cfg.Memory.Enabled {
		mem, err = openMemory(ctx, cfg, factory)
		if err != nil {
			memoryReason = err.Error()
			log.Warn().Err(err).Msg("Long-term memory unavailable, continuing without it")
		}
	} else {
		memoryReason = "disabled in configuration"
	}

	queue := taskqueue.New()
	cache := agent.NewCache(agent.CacheConfig{
		Factory:                 factory,
		Sessions:                store,
		Memory:                  mem,
		Bridge:                  dispatch.NewBridge(),
		ModelID:                 cfg.Backend.ModelID,
		SystemPrompt:            cfg.Prompt.SystemPrompt,
		MemoryGuidelines:        cfg.Prompt.MemoryGuidelines,
		WindowSize:              cfg.Sessions.WindowSize,
		MemoryEnabled:           cfg.Memory.Enabled,
		ControlEnabled:          cfg.Control.Enabled,
		MemoryUnavailableReason: memoryReason,
	})

	svc := service.New(service.Config{
		Cache:         cache,
		Queue:         queue,
		Vision:        vision.NewLoader(cfg.Vision.AllowedDirs),
		MemoryEnabled: cfg.Memory.Enabled,
	})

	return &app{
		cfg:     cfg,
		service: svc,
		cleanup: func() {
			queue.Close()
			if mem != nil {
				mem.Close()
			}
			appLogger.Close()
		},
	}, nil
}

func openMemory(ctx context.Context, cfg *config.Config, factory *backend.SessionFactory) (*memory.Manager, error) {
	client, err := factory.NewModelClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reach embedding backend: %w", err)
	}
	return memory.NewManager(memory.Config{
		DBPath:            filepath.Join(cfg.Memory.StoragePath, "memory.db"),
		Logger:            log.Logger,
		EmbeddingProvider: backend.NewTitanEmbedder(client, cfg.Memory.EmbeddingModel),
	})
}
