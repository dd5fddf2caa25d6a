package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var (
	intentModes    = map[string]bool{"heuristic": true, "model": true}
	llmProviders   = map[string]bool{"none": true, "openai": true, "anthropic": true}
	embedProviders = map[string]bool{"": true, "hash": true, "ollama": true, "openai": true, "none": true}
	vectorBackends = map[string]bool{"": true, "sqlite": true, "chromem": true}
	tokenizers     = map[string]bool{"": true, "chars": true, "tiktoken": true}
	logFormats     = map[string]bool{"": true, "text": true, "json": true}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" && c.DB == "" {
		errs = append(errs, errors.New("config: data_dir is required"))
	}
	if c.Context.Budget <= 0 {
		errs = append(errs, fmt.Errorf("config: context.budget must be positive, got %d", c.Context.Budget))
	}
	if c.Window.Capacity < 1 || c.Window.Capacity > 1000 {
		errs = append(errs, fmt.Errorf("config: window.capacity must be in [1,1000], got %d", c.Window.Capacity))
	}
	if w := c.Retrieval.RecencyWeight; w < 0 || w > 1 {
		errs = append(errs, fmt.Errorf("config: retrieval.recency_weight must be in [0,1], got %v", w))
	}
	if c.Retrieval.DecayPerDay < 0 {
		errs = append(errs, fmt.Errorf("config: retrieval.decay_per_day must not be negative"))
	}
	if m := c.Retrieval.MinConfidence; m < 0 || m > 1 {
		errs = append(errs, fmt.Errorf("config: retrieval.min_confidence must be in [0,1], got %v", m))
	}
	if c.Retrieval.AvgNodeTokens <= 0 {
		errs = append(errs, errors.New("config: retrieval.avg_node_tokens must be positive"))
	}
	if !intentModes[strings.ToLower(c.Retrieval.IntentMode)] {
		errs = append(errs, fmt.Errorf("config: unknown retrieval.intent_mode %q", c.Retrieval.IntentMode))
	}
	if !vectorBackends[strings.ToLower(c.Retrieval.VectorBackend)] {
		errs = append(errs, fmt.Errorf("config: unknown retrieval.vector_backend %q", c.Retrieval.VectorBackend))
	}
	if c.Chunking.Target <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Target {
		errs = append(errs, fmt.Errorf("config: chunking needs 0 <= overlap < target, got target=%d overlap=%d",
			c.Chunking.Target, c.Chunking.Overlap))
	}
	if !embedProviders[strings.ToLower(c.Embedding.Provider)] {
		errs = append(errs, fmt.Errorf("config: unknown embedding.provider %q", c.Embedding.Provider))
	}
	if !llmProviders[strings.ToLower(c.LLM.Provider)] {
		errs = append(errs, fmt.Errorf("config: unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, errors.New("config: llm.timeout must not be negative"))
	}
	if !tokenizers[strings.ToLower(c.Context.Tokenizer)] {
		errs = append(errs, fmt.Errorf("config: unknown context.tokenizer %q", c.Context.Tokenizer))
	}
	if c.Profile.TokenBudget <= 0 {
		errs = append(errs, errors.New("config: profile.token_budget must be positive"))
	}
	if !logFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Errorf("config: unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Logger builds the process logger from the log settings.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
