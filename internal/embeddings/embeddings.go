// Package embeddings provides the embedding functions used by collections.
package embeddings

import (
	"context"
	"fmt"

	"github.com/nickcecere/lvec/internal/config"
)

// Provider represents an embedding provider type.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Service defines the interface for embedding functions.
type Service interface {
	// Embed generates an embedding for the given document text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery generates an embedding for a query (may use a different task prefix).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple document texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensions for this model.
	Dimensions() int

	// Provider returns the provider name.
	Provider() Provider

	// ModelName returns the model name.
	ModelName() string
}

// Known model dimensions
var modelDimensions = map[string]int{
	// Ollama models
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,

	// OpenAI models
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// GetModelDimensions returns the known dimensions for a model, or 0 if unknown.
func GetModelDimensions(model string) int {
	if dims, ok := parseLocalModel(model); ok {
		return dims
	}
	return modelDimensions[model]
}

// NewService creates the default embedding function from configuration.
func NewService(cfg *config.Config) (Service, error) {
	switch Provider(cfg.Embeddings.Provider) {
	case ProviderLocal, "":
		return NewLocalService(cfg.Embeddings.Local.Dimensions), nil
	case ProviderOllama:
		return NewOllamaService(
			cfg.Embeddings.Ollama.URL,
			cfg.Embeddings.Ollama.Model,
		)
	case ProviderOpenAI:
		return NewOpenAIService(
			cfg.Embeddings.OpenAI.APIKey,
			cfg.Embeddings.OpenAI.Model,
			cfg.Embeddings.OpenAI.BaseURL,
			cfg.Embeddings.OpenAI.Dimensions,
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embeddings.Provider)
	}
}

// NewServiceForCollection re-creates the embedding function a collection was
// created with. Connection settings (URLs, keys) still come from cfg.
func NewServiceForCollection(provider, model string, cfg *config.Config) (Service, error) {
	switch Provider(provider) {
	case ProviderLocal:
		dims, ok := parseLocalModel(model)
		if !ok {
			return nil, fmt.Errorf("invalid local embedding model: %s", model)
		}
		return NewLocalService(dims), nil
	case ProviderOllama:
		return NewOllamaService(
			cfg.Embeddings.Ollama.URL,
			model,
		)
	case ProviderOpenAI:
		return NewOpenAIService(
			cfg.Embeddings.OpenAI.APIKey,
			model,
			cfg.Embeddings.OpenAI.BaseURL,
			cfg.Embeddings.OpenAI.Dimensions,
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// Resolver returns a function that rebuilds embedding functions from
// stored provider/model pairs using cfg.
func Resolver(cfg *config.Config) func(provider, model string) (Service, error) {
	return func(provider, model string) (Service, error) {
		return NewServiceForCollection(provider, model, cfg)
	}
}
