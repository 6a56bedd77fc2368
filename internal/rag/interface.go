// Package rag defines the retrieval types shared by the ingest and ask paths:
// chunks, collections, the vector store contract, the embedder contract and
// the typed error taxonomy. Concrete stores (Qdrant, in-memory) satisfy
// [VectorStore] so the orchestrator never depends on a specific backend.
package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Metric is the similarity function of a collection.
type Metric string

const (
	// MetricCosine scores by cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricDot scores by inner product.
	MetricDot Metric = "dot"
	// MetricEuclid scores by negated euclidean distance, so higher is closer.
	MetricEuclid Metric = "euclid"
)

// ParseMetric converts a config string to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricDot, MetricEuclid:
		return Metric(s), nil
	case "":
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("rag: unknown distance metric %q (want cosine, dot or euclid)", s)
	}
}

// CollectionSpec describes a named vector collection.
type CollectionSpec struct {
	// Name is the physical collection name in the store.
	Name string

	// Dimension is the required length of every vector.
	Dimension int

	// Metric is the similarity function.
	Metric Metric
}

// Chunk is a contiguous span of a source document.
type Chunk struct {
	// ID is stable for a given (Source, Seq) pair, see [ChunkID].
	ID string

	// Text is the chunk content.
	Text string

	// Source is the origin label: a URL, file path or caller-supplied name.
	Source string

	// Seq is the zero-based position of the chunk within its source.
	Seq int
}

// ChunkID returns the deterministic identifier for chunk seq of source.
// Re-ingesting the same source therefore overwrites rather than duplicates.
func ChunkID(source string, seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(seq))).String()
}

// Record pairs a chunk with its embedding for upsert.
type Record struct {
	Chunk  Chunk
	Vector []float32
}

// Result is one search hit. Results are ordered by non-increasing Score;
// ties keep insertion order.
type Result struct {
	Chunk Chunk
	Score float32
}

// VectorStore persists embeddings in named collections.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// EnsureCollection creates the collection if absent. An existing
	// collection with a different dimension or metric yields ErrConfigConflict.
	// Concurrent callers creating the same collection must both succeed.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error

	// Upsert writes records, replacing any with the same chunk ID, and
	// returns the number written. A replaced record keeps its original
	// insertion position for tie ordering.
	Upsert(ctx context.Context, collection string, records []Record) (int, error)

	// Search returns up to k results closest to vec.
	Search(ctx context.Context, collection string, vec []float32, k int) ([]Result, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context, collection string) (int, error)

	// DropCollection deletes the collection. Dropping a missing collection
	// is not an error.
	DropCollection(ctx context.Context, collection string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts. The returned slice is parallel to texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
