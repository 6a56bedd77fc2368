package embedder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OllamaEmbedder calls Ollama's batch /api/embed endpoint. It needs no
// credentials and is safe for concurrent use.
type OllamaEmbedder struct {
	host   string
	model  string
	client *http.Client
}

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the server base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model, e.g. "nomic-embed-text".
	Model string
	// HTTPClient replaces the default client in tests.
	HTTPClient *http.Client
}

// NewOllamaEmbedder returns an OllamaEmbedder for cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: orDefaultClient(cfg.HTTPClient),
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func (r *ollamaEmbedResponse) errorMessage() string { return r.Error }

// Embed returns one vector per input text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out ollamaEmbedResponse
	if err := postJSON(ctx, e.client, "ollama", e.host+"/api/embed", nil,
		ollamaEmbedRequest{Model: e.model, Input: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

// Ping checks that the Ollama server answers /api/tags.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	return getOK(ctx, e.client, "ollama", e.host+"/api/tags")
}
