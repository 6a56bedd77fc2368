package rag

import (
	"context"
	"fmt"
)

// Index binds a [VectorStore] to one collection. The orchestrator swaps
// whole Index values when it reindexes, so readers always see a single,
// fully built collection.
type Index struct {
	store VectorStore
	spec  CollectionSpec
}

// OpenIndex ensures spec exists in store and returns an Index bound to it.
func OpenIndex(ctx context.Context, store VectorStore, spec CollectionSpec) (*Index, error) {
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if spec.Name == "" {
		return nil, E(KindValidation, "rag.open_index", "collection name must not be empty", nil)
	}
	if spec.Dimension <= 0 {
		return nil, E(KindValidation, "rag.open_index", fmt.Sprintf("collection dimension must be positive, got %d", spec.Dimension), nil)
	}
	if spec.Metric == "" {
		spec.Metric = MetricCosine
	}
	if err := store.EnsureCollection(ctx, spec); err != nil {
		return nil, err
	}
	return &Index{store: store, spec: spec}, nil
}

// Spec returns the collection this index is bound to.
func (ix *Index) Spec() CollectionSpec { return ix.spec }

// Name returns the physical collection name.
func (ix *Index) Name() string { return ix.spec.Name }

// Upsert writes chunks with their parallel embeddings. Vectors whose length
// differs from the collection dimension are rejected before the store is
// touched.
func (ix *Index) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("rag: upsert: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	records := make([]Record, len(chunks))
	for i := range chunks {
		if err := CheckDimension(ix.spec.Dimension, vectors[i]); err != nil {
			return 0, err
		}
		records[i] = Record{Chunk: chunks[i], Vector: vectors[i]}
	}
	return ix.store.Upsert(ctx, ix.spec.Name, records)
}

// Search returns up to k results closest to vec.
func (ix *Index) Search(ctx context.Context, vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := CheckDimension(ix.spec.Dimension, vec); err != nil {
		return nil, err
	}
	return ix.store.Search(ctx, ix.spec.Name, vec, k)
}

// Count returns the number of chunks in the collection.
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx, ix.spec.Name)
}

// Drop deletes the underlying collection.
func (ix *Index) Drop(ctx context.Context) error {
	return ix.store.DropCollection(ctx, ix.spec.Name)
}

// CheckDimension returns ErrDimensionMismatch if len(vec) != want.
func CheckDimension(want int, vec []float32) error {
	if len(vec) != want {
		return E(KindDimensionMismatch, "rag.check_dimension",
			"", fmt.Errorf("vector has %d dimensions, collection expects %d", len(vec), want))
	}
	return nil
}
