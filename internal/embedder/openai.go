// Package embedder turns text into dense vectors for the rag.Embedder
// interface. Backends (Ollama, OpenAI, Azure OpenAI) are thin HTTP clients;
// [Client] adds a deadline, one retry of transient failures and a dimension
// check on top of any of them.
package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// OpenAIEmbedder calls the OpenAI embeddings API or an Azure OpenAI
// deployment of it. It is safe for concurrent use.
type OpenAIEmbedder struct {
	endpoint   string
	header     http.Header
	model      string
	dimensions int
	client     *http.Client
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	APIKey  string
	// Model is the embedding model; for Azure, the deployment name.
	Model string
	// Dimensions requests shortened vectors from text-embedding-3 models.
	// Zero keeps the model's native size.
	Dimensions int
	// Azure switches to the api-key header and deployment-scoped URL.
	Azure      bool
	APIVersion string
	HTTPClient *http.Client
}

// NewOpenAIEmbedder returns an OpenAIEmbedder for cfg.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	e := &OpenAIEmbedder{
		endpoint:   base + "/embeddings",
		header:     http.Header{},
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     orDefaultClient(cfg.HTTPClient),
	}
	if cfg.Azure {
		e.endpoint = base + "/deployments/" + url.PathEscape(cfg.Model) +
			"/embeddings?api-version=" + url.QueryEscape(cfg.APIVersion)
		e.header.Set("api-key", cfg.APIKey)
	} else {
		e.header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return e
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *openaiEmbedResponse) errorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}

// Embed returns one vector per input text, in input order. The API labels
// each item with its input index and does not promise to keep the order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out openaiEmbedResponse
	in := openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions}
	if err := postJSON(ctx, e.client, "openai", e.endpoint, e.header, in, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(out.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("openai embedder: bad or duplicate index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
