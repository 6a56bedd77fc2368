package rag

import (
	"context"
	"fmt"
)

// Retriever embeds a query and searches an index. The index is resolved on
// every call so a reindex swap is picked up without rebuilding the retriever.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// index returns the active index.
	index func() *Index
}

// NewRetriever constructs a Retriever from an Embedder and an index source.
func NewRetriever(embedder Embedder, index func() *Index) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index source must not be nil")
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// EmbedQuery returns the embedding of a single query string.
func (r *Retriever) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}
	return embeddings[0], nil
}

// Search returns the top-k results for an already embedded query.
func (r *Retriever) Search(ctx context.Context, vec []float32, topK int) ([]Result, error) {
	ix := r.index()
	if ix == nil {
		return nil, fmt.Errorf("rag: no active index")
	}
	return ix.Search(ctx, vec, topK)
}

// Retrieve embeds the query and returns the top-k most relevant chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	vec, err := r.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.Search(ctx, vec, topK)
}
