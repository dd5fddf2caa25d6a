// Package config loads lattice-memory settings from a YAML file, the
// environment and defaults, in increasing order of precedence for the
// environment.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults.
const (
	DefaultContextBudget     = 12000
	DefaultMaxResponseTokens = 1024
	DefaultWindowCapacity    = 15
	DefaultRecencyWeight     = 0.3
	DefaultDecayPerDay       = 0.1
	DefaultMinConfidence     = 0.45
	DefaultAvgNodeTokens     = 200
	DefaultChunkTarget       = 800
	DefaultChunkOverlap      = 100
	DefaultProfileBudget     = 800
	DefaultQueueSize         = 64
	DefaultCompletionTimeout = 60 * time.Second
	DefaultCacheEntries      = 1024
	DefaultSnapshotSchedule  = "*/5 * * * *"
	DefaultCompactSchedule   = "17 * * * *"
)

// Config is the full settings tree.
type Config struct {
	DataDir     string            `yaml:"data_dir"`
	DB          string            `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Context     ContextConfig     `yaml:"context"`
	Window      WindowConfig      `yaml:"window"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Profile     ProfileConfig     `yaml:"profile"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type ContextConfig struct {
	Budget            int    `yaml:"budget"`
	MaxResponseTokens int    `yaml:"max_response_tokens"`
	Tokenizer         string `yaml:"tokenizer"` // chars or tiktoken
	SystemPrompt      string `yaml:"system_prompt"`
}

type WindowConfig struct {
	Capacity int `yaml:"capacity"`
}

type RetrievalConfig struct {
	RecencyWeight float64 `yaml:"recency_weight"`
	DecayPerDay   float64 `yaml:"decay_per_day"`
	MinConfidence float64 `yaml:"min_confidence"`
	AvgNodeTokens int     `yaml:"avg_node_tokens"`
	IntentMode    string  `yaml:"intent_mode"`    // heuristic or model
	VectorBackend string  `yaml:"vector_backend"` // sqlite or chromem
}

type ChunkingConfig struct {
	Target  int `yaml:"target"`
	Overlap int `yaml:"overlap"`
}

type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // hash, ollama, openai, none
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Dims         int    `yaml:"dims"`
	CacheEntries int    `yaml:"cache_entries"`
}

type LLMConfig struct {
	Provider       string        `yaml:"provider"` // openai, anthropic, none
	Model          string        `yaml:"model"`
	ReasoningModel string        `yaml:"reasoning_model"`
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	// Reasoning enables the model-backed intent, fact and summary calls.
	Reasoning bool `yaml:"reasoning"`
}

type ProfileConfig struct {
	TokenBudget int `yaml:"token_budget"`
	QueueSize   int `yaml:"queue_size"`
}

type MaintenanceConfig struct {
	Enabled          bool   `yaml:"enabled"`
	SnapshotSchedule string `yaml:"snapshot_schedule"`
	CompactSchedule  string `yaml:"compact_schedule"`
}

type MetricsConfig struct {
	// Addr serves /metrics when non-empty, e.g. "127.0.0.1:9464".
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration rooted at ~/.lattice-memory.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".lattice-memory"),
		Log:     LogConfig{Level: "warn", Format: "text"},
		Context: ContextConfig{
			Budget:            DefaultContextBudget,
			MaxResponseTokens: DefaultMaxResponseTokens,
			Tokenizer:         "chars",
		},
		Window: WindowConfig{Capacity: DefaultWindowCapacity},
		Retrieval: RetrievalConfig{
			RecencyWeight: DefaultRecencyWeight,
			DecayPerDay:   DefaultDecayPerDay,
			MinConfidence: DefaultMinConfidence,
			AvgNodeTokens: DefaultAvgNodeTokens,
			IntentMode:    "heuristic",
			VectorBackend: "sqlite",
		},
		Chunking:  ChunkingConfig{Target: DefaultChunkTarget, Overlap: DefaultChunkOverlap},
		Embedding: EmbeddingConfig{Provider: "hash", CacheEntries: DefaultCacheEntries},
		LLM:       LLMConfig{Timeout: DefaultCompletionTimeout, Reasoning: true},
		Profile:   ProfileConfig{TokenBudget: DefaultProfileBudget, QueueSize: DefaultQueueSize},
		Maintenance: MaintenanceConfig{
			Enabled:          true,
			SnapshotSchedule: DefaultSnapshotSchedule,
			CompactSchedule:  DefaultCompactSchedule,
		},
	}
}

// DBPath is the SQLite file, defaulting to memory.db under DataDir.
func (c *Config) DBPath() string {
	if c.DB != "" {
		return c.DB
	}
	return filepath.Join(c.DataDir, "memory.db")
}

func (c *Config) WindowPath() string  { return filepath.Join(c.DataDir, "window.json") }
func (c *Config) ProfilePath() string { return filepath.Join(c.DataDir, "profile.md") }
func (c *Config) VectorsDir() string  { return filepath.Join(c.DataDir, "vectors") }

// DefaultPath is where Resolve looks for a config file.
func DefaultPath() string {
	if env := os.Getenv("LATTICE_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(Default().DataDir, "config.yaml")
}
