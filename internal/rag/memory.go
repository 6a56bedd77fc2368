package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force search.
// It backs the "memory" vector backend and the package tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	// next is the global insertion counter used to break score ties.
	next uint64
}

type memCollection struct {
	spec    CollectionSpec
	entries map[string]*memEntry
}

type memEntry struct {
	chunk  Chunk
	vector []float32
	ins    uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// EnsureCollection implements VectorStore.
func (s *MemoryStore) EnsureCollection(_ context.Context, spec CollectionSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[spec.Name]; ok {
		if c.spec.Dimension != spec.Dimension || c.spec.Metric != spec.Metric {
			return E(KindConfigConflict, "memory.ensure_collection", "",
				fmt.Errorf("collection %q exists with dimension=%d metric=%s, requested dimension=%d metric=%s",
					spec.Name, c.spec.Dimension, c.spec.Metric, spec.Dimension, spec.Metric))
		}
		return nil
	}
	s.collections[spec.Name] = &memCollection{spec: spec, entries: make(map[string]*memEntry)}
	return nil
}

// Upsert implements VectorStore. Overwritten chunks keep their original
// insertion position.
func (s *MemoryStore) Upsert(_ context.Context, collection string, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("memory: collection %q does not exist", collection)
	}
	for _, r := range records {
		if err := CheckDimension(c.spec.Dimension, r.Vector); err != nil {
			return 0, err
		}
	}
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		if e, ok := c.entries[r.Chunk.ID]; ok {
			e.chunk = r.Chunk
			e.vector = vec
			continue
		}
		s.next++
		c.entries[r.Chunk.ID] = &memEntry{chunk: r.Chunk, vector: vec, ins: s.next}
	}
	return len(records), nil
}

// Search implements VectorStore.
func (s *MemoryStore) Search(_ context.Context, collection string, vec []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("memory: collection %q does not exist", collection)
	}
	if err := CheckDimension(c.spec.Dimension, vec); err != nil {
		return nil, err
	}

	type scored struct {
		res Result
		ins uint64
	}
	hits := make([]scored, 0, len(c.entries))
	for _, e := range c.entries {
		hits = append(hits, scored{
			res: Result{Chunk: e.chunk, Score: score(c.spec.Metric, vec, e.vector)},
			ins: e.ins,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].res.Score != hits[j].res.Score {
			return hits[i].res.Score > hits[j].res.Score
		}
		return hits[i].ins < hits[j].ins
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = h.res
	}
	return out, nil
}

// Count implements VectorStore.
func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("memory: collection %q does not exist", collection)
	}
	return len(c.entries), nil
}

// DropCollection implements VectorStore.
func (s *MemoryStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// Close implements VectorStore.
func (s *MemoryStore) Close() error { return nil }

// score returns a similarity where higher is closer for every metric.
func score(m Metric, a, b []float32) float32 {
	switch m {
	case MetricDot:
		return dot(a, b)
	case MetricEuclid:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return -float32(math.Sqrt(sum))
	default:
		na, nb := norm(a), norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}
