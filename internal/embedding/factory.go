package embedding

import (
	"fmt"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Options selects and configures an embedding provider.
type Options struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"-"`
	Dims         int    `yaml:"dims"`
	CacheEntries int    `yaml:"cache_entries"`
}

// New builds the configured embedder wrapped in a Cached layer. Provider
// "none" returns nil, which disables semantic retrieval.
func New(opts Options) (Embedder, error) {
	var inner Embedder
	switch strings.ToLower(opts.Provider) {
	case "", ProviderHash:
		inner = NewHashEmbedder(opts.Dims)
	case ProviderOllama:
		inner = NewOllamaEmbedder(OllamaConfig{BaseURL: opts.BaseURL, Model: opts.Model, Dims: opts.Dims})
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an API key")
		}
		inner = NewOpenAIEmbedder(opts.BaseURL, opts.APIKey, opts.Model, opts.Dims)
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
	cached, err := NewCached(inner, opts.CacheEntries)
	if err != nil {
		return nil, err
	}
	return cached, nil
}
