package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML file over the defaults, expands ${VAR} references, then
// applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		expanded, err := expandEnv(raw)
		if err != nil {
			return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// Resolve loads path, or the default config file when path is empty and that
// file exists, or the defaults otherwise.
func Resolve(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultPath()); err == nil {
			path = DefaultPath()
		}
	}
	return Load(path)
}

// applyEnv overlays environment variables. Provider keys only fill empty
// fields so a key in the file wins over an ambient one.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	set("LATTICE_DATA_DIR", &cfg.DataDir)
	set("LATTICE_DB", &cfg.DB)
	set("LATTICE_PROVIDER", &cfg.LLM.Provider)
	set("LATTICE_MODEL", &cfg.LLM.Model)
	set("LATTICE_EMBED_PROVIDER", &cfg.Embedding.Provider)
	set("LATTICE_LOG_LEVEL", &cfg.Log.Level)

	openaiKey, _ := lookup("OPENAI_API_KEY")
	anthropicKey, _ := lookup("ANTHROPIC_API_KEY")

	if cfg.LLM.Provider == "" {
		switch {
		case anthropicKey != "":
			cfg.LLM.Provider = "anthropic"
		case openaiKey != "":
			cfg.LLM.Provider = "openai"
		default:
			cfg.LLM.Provider = "none"
		}
	}
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "anthropic":
			cfg.LLM.APIKey = anthropicKey
		case "openai":
			cfg.LLM.APIKey = openaiKey
		}
	}

	switch strings.ToLower(cfg.Embedding.Provider) {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = openaiKey
		}
	case "ollama":
		if cfg.Embedding.BaseURL == "" {
			set("OLLAMA_HOST", &cfg.Embedding.BaseURL)
		}
	}
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if hasDefault {
			return subs[2]
		}
		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
