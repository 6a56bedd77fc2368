package embedder

import (
	"fmt"
	"strings"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config selects and parameterises an embedding backend.
type Config struct {
	// Provider is ollama, openai or azure.
	Provider string
	// Model is the embedding model name. Empty selects the backend default.
	Model string
	// Endpoint is the backend base URL (Ollama host, OpenAI base URL or
	// Azure resource endpoint).
	Endpoint string
	// APIKey authenticates openai and azure.
	APIKey string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the expected vector length. Zero selects the backend default.
	Dimensions int
}

// DefaultDimensions returns the embedding vector size of the default model of
// the given backend. Callers that need to pre-configure a vector collection
// should use this rather than hardcoding a value.
func DefaultDimensions(backend string) int {
	switch backend {
	case "ollama", "":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// DefaultModel returns the default embedding model for backend.
func DefaultModel(backend string) string {
	switch backend {
	case "ollama", "":
		return defaultOllamaModel
	default:
		return defaultOpenAIModel
	}
}

// New constructs the raw backend embedder described by cfg. Wrap the result
// in [NewClient] before use in the pipeline.
func New(cfg Config) (rag.Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Provider)
	}

	switch cfg.Provider {
	case "ollama", "":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: apiVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", cfg.Provider)
	}
}
