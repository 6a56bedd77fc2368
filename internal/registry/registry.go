// Package registry records the current document set and the name of the
// active vector collection. Reindex rebuilds from this record, so the
// original bytes of every ingested document are kept.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/54b3r/ragchat-go/internal/source"
)

// Document is one ingested source.
type Document struct {
	// Source is the chunk source label (URL, file name or caller label).
	Source string `json:"source"`
	// Kind is the document format.
	Kind source.Kind `json:"kind"`
	// Raw is the original document bytes.
	Raw []byte `json:"raw"`
	// Chunks is the number of chunks written at the last ingest.
	Chunks int `json:"chunks"`
	// IngestedAt is when the document was first ingested.
	IngestedAt time.Time `json:"ingested_at"`
}

// Open rebuilds the document's Source variant.
func (d Document) Open() (source.Source, error) {
	return source.New(d.Kind, d.Source, d.Raw)
}

// Registry stores documents keyed by Source. Re-registering a source
// replaces its bytes and keeps its original IngestedAt.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Put inserts or replaces doc.
	Put(ctx context.Context, doc Document) error
	// List returns every document ordered by IngestedAt, then Source.
	List(ctx context.Context) ([]Document, error)
	// Count returns the number of documents.
	Count(ctx context.Context) (int, error)
	// ActiveCollection returns the recorded active collection, or "".
	ActiveCollection(ctx context.Context) (string, error)
	// SetActiveCollection records name as the active collection.
	SetActiveCollection(ctx context.Context, name string) error
	// Close releases any resources.
	Close() error
}

// Memory is an in-process Registry.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]Document
	active string
}

// NewMemory returns an empty Memory registry.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// Put implements Registry.
func (m *Memory) Put(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Source] = merge(m.docs[doc.Source], doc)
	return nil
}

// List implements Registry.
func (m *Memory) List(context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	sortDocuments(out)
	return out, nil
}

// Count implements Registry.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// ActiveCollection implements Registry.
func (m *Memory) ActiveCollection(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, nil
}

// SetActiveCollection implements Registry.
func (m *Memory) SetActiveCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = name
	return nil
}

// Close implements Registry.
func (m *Memory) Close() error { return nil }

// merge keeps the first ingestion time of an existing entry.
func merge(old, doc Document) Document {
	if !old.IngestedAt.IsZero() {
		doc.IngestedAt = old.IngestedAt
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}
	return doc
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].IngestedAt.Equal(docs[j].IngestedAt) {
			return docs[i].IngestedAt.Before(docs[j].IngestedAt)
		}
		return docs[i].Source < docs[j].Source
	})
}
