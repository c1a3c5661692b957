package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Hearth configuration
type Config struct {
	// Backend holds model-host credentials and model selection
	Backend BackendConfig `json:"backend" mapstructure:"backend"`

	// Prompt holds system prompt configuration
	Prompt PromptConfig `json:"prompt" mapstructure:"prompt"`

	// Memory holds long-term semantic memory configuration
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// Control holds home-automation control configuration
	Control ControlConfig `json:"control" mapstructure:"control"`

	// Sessions holds conversation persistence configuration
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Vision holds image attachment configuration
	Vision VisionConfig `json:"vision" mapstructure:"vision"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// BackendConfig holds model-hosting backend configuration
type BackendConfig struct {
	Region          string `json:"region" mapstructure:"region"`
	AccessKeyID     string `json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" mapstructure:"secret_access_key"`
	ModelID         string `json:"model_id" mapstructure:"model_id"`
}

// PromptConfig holds system prompt configuration
type PromptConfig struct {
	SystemPrompt     string `json:"system_prompt" mapstructure:"system_prompt"`
	MemoryGuidelines string `json:"memory_guidelines" mapstructure:"memory_guidelines"`
}

// MemoryConfig holds long-term memory configuration
type MemoryConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	StoragePath    string `json:"storage_path" mapstructure:"storage_path"`
	EmbeddingModel string `json:"embedding_model" mapstructure:"embedding_model"`
}

// ControlConfig holds home-automation control configuration
type ControlConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// SessionsConfig holds conversation persistence configuration
type SessionsConfig struct {
	StoragePath string `json:"storage_path" mapstructure:"storage_path"`
	WindowSize  int    `json:"window_size" mapstructure:"window_size"`
}

// VisionConfig holds image attachment configuration
type VisionConfig struct {
	// AllowedDirs restricts which local paths image attachments may be
	// read from.
	AllowedDirs []string `json:"allowed_dirs" mapstructure:"allowed_dirs"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Region:  "us-east-1",
			ModelID: "us.anthropic.claude-sonnet-4-20250514-v1:0",
		},
		Memory: MemoryConfig{
			Enabled:        true,
			EmbeddingModel: "amazon.titan-embed-text-v1",
		},
		Control: ControlConfig{
			Enabled: true,
		},
		Sessions: SessionsConfig{
			WindowSize: 40,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid. A missing region or
// credential pair is fatal to setup.
func (c *Config) Validate() error {
	if c.Backend.Region == "" {
		return fmt.Errorf("backend region is required")
	}
	if c.Backend.AccessKeyID == "" {
		return fmt.Errorf("backend access_key_id is required")
	}
	if c.Backend.SecretAccessKey == "" {
		return fmt.Errorf("backend secret_access_key is required")
	}
	if c.Backend.ModelID == "" {
		return fmt.Errorf("backend model_id is required")
	}
	if c.Sessions.WindowSize < 0 {
		return fmt.Errorf("sessions window_size cannot be negative")
	}

	if c.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, lv := range validLevels {
			if c.Logging.Level == lv {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid log level %s (must be: debug, info, warn, error)", c.Logging.Level)
		}
	}

	return nil
}
