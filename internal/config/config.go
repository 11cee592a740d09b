// Package config holds pactd plugin configuration and the host environment
// contract (session id, project dir, team identity) exposed to hooks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pactd configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Filesystem layout under the host's dot-directory
	Paths PathsConfig `yaml:"paths"`

	// Pinned-context staleness scanning
	Staleness StalenessConfig `yaml:"staleness"`

	// Memory store
	Memory MemoryConfig `yaml:"memory"`

	// Telegram bridge
	Telegram TelegramConfig `yaml:"telegram"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig fixes where plugin state lives. All paths default to
// subdirectories of ~/.claude so they are shared with the host runtime.
type PathsConfig struct {
	ClaudeDir   string `yaml:"claude_dir"`   // host dot-directory
	StateDir    string `yaml:"state_dir"`    // pactd-owned state (config, logs, db)
	RefreshDir  string `yaml:"refresh_dir"`  // checkpoint records per project
	TeamsDir    string `yaml:"teams_dir"`    // host-managed team rosters
	TasksDir    string `yaml:"tasks_dir"`    // per-team task files
	SessionsDir string `yaml:"sessions_dir"` // end-of-session snapshots
}

// StalenessConfig tunes the pinned-context scan.
type StalenessConfig struct {
	Days        int `yaml:"days"`         // age threshold for STALE markers
	TokenBudget int `yaml:"token_budget"` // pinned section size warning threshold
}

// MemoryConfig configures the SQLite memory store.
type MemoryConfig struct {
	DatabasePath string          `yaml:"database_path"`
	Embedding    EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig configures optional vector search.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "", "ollama", or "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	Dimensions     int    `yaml:"dimensions"`
}

// TelegramConfig configures the notification bridge.
type TelegramConfig struct {
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	AskTimeout string `yaml:"ask_timeout"`
	MaxButtons int    `yaml:"max_buttons"`
}

// LoggingConfig mirrors internal/logging's view of the config file.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	claudeDir := defaultClaudeDir()
	stateDir := filepath.Join(claudeDir, "pact")

	return &Config{
		Name:    "pactd",
		Version: "1.0.0",

		Paths: PathsConfig{
			ClaudeDir:   claudeDir,
			StateDir:    stateDir,
			RefreshDir:  filepath.Join(claudeDir, "pact-refresh"),
			TeamsDir:    filepath.Join(claudeDir, "teams"),
			TasksDir:    filepath.Join(claudeDir, "tasks"),
			SessionsDir: filepath.Join(stateDir, "sessions"),
		},

		Staleness: StalenessConfig{
			Days:        30,
			TokenBudget: 1200,
		},

		Memory: MemoryConfig{
			DatabasePath: filepath.Join(stateDir, "memory.db"),
			Embedding: EmbeddingConfig{
				OllamaEndpoint: "http://localhost:11434",
				OllamaModel:    "embeddinggemma",
				GenAIModel:     "gemini-embedding-001",
				Dimensions:     768,
			},
		},

		Telegram: TelegramConfig{
			AskTimeout: "300s",
			MaxButtons: 8,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns <state dir>/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(defaultClaudeDir(), "pact", "config.yaml")
}

func defaultClaudeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		c.Telegram.ChatID = chat
	}
	if path := os.Getenv("PACT_DB"); path != "" {
		c.Memory.DatabasePath = path
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Memory.Embedding.GenAIAPIKey = key
		if c.Memory.Embedding.Provider == "" {
			c.Memory.Embedding.Provider = "genai"
		}
	}
}

// AskTimeout returns the telegram ask timeout as a duration, clamped to
// the 10s..600s window the bridge enforces.
func (c *Config) AskTimeout() time.Duration {
	d, err := time.ParseDuration(c.Telegram.AskTimeout)
	if err != nil {
		return 300 * time.Second
	}
	if d < 10*time.Second {
		return 10 * time.Second
	}
	if d > 600*time.Second {
		return 600 * time.Second
	}
	return d
}

// Validate checks the configuration for basic sanity.
func (c *Config) Validate() error {
	if c.Paths.ClaudeDir == "" {
		return fmt.Errorf("paths.claude_dir is required")
	}
	if c.Staleness.Days <= 0 {
		return fmt.Errorf("staleness.days must be positive")
	}
	if c.Staleness.TokenBudget <= 0 {
		return fmt.Errorf("staleness.token_budget must be positive")
	}
	return nil
}

// =============================================================================
// HOST ENVIRONMENT CONTRACT
// Values the host runtime passes to every hook process via environment.
// =============================================================================

// SessionID returns the host session id, "unknown" when absent.
func SessionID() string {
	if id := os.Getenv("CLAUDE_SESSION_ID"); id != "" {
		return id
	}
	return "unknown"
}

// ProjectDir returns the host project directory, empty when absent.
func ProjectDir() string {
	return os.Getenv("CLAUDE_PROJECT_DIR")
}

// TeamName returns the team the current agent belongs to, empty when
// solo. Lowercased so the team's on-disk paths never split on casing.
func TeamName() string {
	return strings.ToLower(os.Getenv("CLAUDE_CODE_TEAM_NAME"))
}

// AgentName returns the current agent's name, empty when unset.
func AgentName() string {
	return os.Getenv("CLAUDE_CODE_AGENT_NAME")
}

// WorktreePath returns the enforced worktree root, empty when unenforced.
func WorktreePath() string {
	return os.Getenv("PACT_WORKTREE_PATH")
}
