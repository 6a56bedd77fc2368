// Package orchestrator combines the chunker, embedder, vector store,
// generator and conversation memory into the ingest, ask, stats and reindex
// operations. An Orchestrator is built once at startup and owns its
// collaborators; the active index sits behind an atomic pointer so a reindex
// swaps it without disturbing in-flight asks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/budget"
	"github.com/54b3r/ragchat-go/internal/ingestion"
	"github.com/54b3r/ragchat-go/internal/provider"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/registry"
	"github.com/54b3r/ragchat-go/internal/source"
	"github.com/54b3r/ragchat-go/internal/store"
)

// DefaultCollection is the base collection name.
const DefaultCollection = "ragchat"

// Generator produces a reply for a message list. *provider.Generator
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, msgs []*schema.Message, opts provider.Options) (string, error)
}

// Config holds the orchestrator settings.
type Config struct {
	// Collection is the base collection name. Reindex builds into
	// "<Collection>_<unix nanos>". Defaults to DefaultCollection.
	Collection string

	// Dimension is the embedding vector size. Required.
	Dimension int

	// Metric is the similarity metric. Defaults to cosine.
	Metric rag.Metric

	// TopK is the number of chunks retrieved per ask. Zero disables
	// retrieval, giving plain multi-turn chat.
	TopK int

	// Persona selects the system prompt. Defaults to DefaultPersona.
	Persona string

	// MaxContextTokens is the prompt budget; history is trimmed oldest first
	// to fit. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// Generation holds the sampling options sent with every ask.
	Generation provider.Options
}

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Store     rag.VectorStore
	Embedder  rag.Embedder
	Generator Generator
	Sessions  store.SessionStore
	Registry  registry.Registry
	Pipeline  *ingestion.Pipeline

	// Metrics receives the orchestrator metrics. Nil uses a private registry.
	Metrics prometheus.Registerer

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Orchestrator runs the retrieval-augmented chat pipeline.
// It is safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	system    string
	store     rag.VectorStore
	generator Generator
	sessions  store.SessionStore
	registry  registry.Registry
	pipeline  *ingestion.Pipeline
	retriever *rag.Retriever
	metrics   *pipelineMetrics
	log       *slog.Logger
	now       func() time.Time

	// index is the active index. Asks load it once per request.
	index atomic.Pointer[rag.Index]

	// mu serializes reindex against ingest: ingests hold it shared so none
	// lands in a collection that is being replaced.
	mu sync.RWMutex

	// swap is held shared by reads of the active index and exclusively
	// while a reindex replaces it, so the old collection is only dropped
	// once no read still uses it.
	swap sync.RWMutex
}

// New constructs an Orchestrator and opens the active collection: the one
// recorded in the registry by the last reindex, or the base collection.
func New(ctx context.Context, cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Store == nil || deps.Embedder == nil || deps.Generator == nil {
		return nil, fmt.Errorf("orchestrator: store, embedder and generator must not be nil")
	}
	if deps.Sessions == nil || deps.Registry == nil || deps.Pipeline == nil {
		return nil, fmt.Errorf("orchestrator: sessions, registry and pipeline must not be nil")
	}
	if cfg.TopK < 0 {
		return nil, rag.E(rag.KindValidation, "orchestrator.new", "top-k must not be negative", nil)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Metric == "" {
		cfg.Metric = rag.MetricCosine
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	system, err := SystemPrompt(cfg.Persona)
	if err != nil {
		return nil, rag.E(rag.KindValidation, "orchestrator.new", err.Error(), nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewRegistry()
	}

	o := &Orchestrator{
		cfg:       cfg,
		system:    system,
		store:     deps.Store,
		generator: deps.Generator,
		sessions:  deps.Sessions,
		registry:  deps.Registry,
		pipeline:  deps.Pipeline,
		metrics:   newPipelineMetrics(deps.Metrics),
		log:       deps.Logger,
		now:       time.Now,
	}

	active, err := deps.Registry.ActiveCollection(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read active collection: %w", err)
	}
	if active == "" {
		active = cfg.Collection
	}
	ix, err := rag.OpenIndex(ctx, deps.Store, o.spec(active))
	if err != nil {
		return nil, err
	}
	o.index.Store(ix)

	o.retriever, err = rag.NewRetriever(deps.Embedder, o.Index)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	o.log.Info("orchestrator: ready",
		slog.String("collection", active),
		slog.Int("dimension", cfg.Dimension),
		slog.String("metric", string(cfg.Metric)),
		slog.Int("top_k", cfg.TopK),
		slog.String("persona", cfg.Persona),
	)
	return o, nil
}

// Index returns the active index.
func (o *Orchestrator) Index() *rag.Index { return o.index.Load() }

func (o *Orchestrator) spec(name string) rag.CollectionSpec {
	return rag.CollectionSpec{Name: name, Dimension: o.cfg.Dimension, Metric: o.cfg.Metric}
}

// IngestResult reports the outcome of one ingest.
type IngestResult = ingestion.Result

// Ingest extracts, chunks, embeds and stores src in the active collection,
// then records it in the document registry. A partial failure returns the
// result together with an ErrPartialIngest.
func (o *Orchestrator) Ingest(ctx context.Context, src source.Source) (*IngestResult, error) {
	if src == nil || strings.TrimSpace(src.Name()) == "" {
		return nil, rag.E(rag.KindValidation, "orchestrator.ingest", "A document source is required.", nil)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	res, err := o.pipeline.Ingest(ctx, o.Index(), src)
	if res != nil {
		o.metrics.ingestChunksTotal.WithLabelValues("written").Add(float64(res.Written))
		o.metrics.ingestChunksTotal.WithLabelValues("failed").Add(float64(res.Failed))
	}
	if res == nil || res.Written == 0 {
		o.logFailure("orchestrator: ingest failed", err, slog.String("source", src.Name()))
		return res, err
	}

	doc := registry.Document{
		Source:     src.Name(),
		Kind:       src.Kind(),
		Raw:        src.Raw(),
		Chunks:     res.Chunks,
		IngestedAt: o.now().UTC(),
	}
	if perr := o.registry.Put(ctx, doc); perr != nil {
		return res, fmt.Errorf("orchestrator: register %s: %w", src.Name(), perr)
	}
	if err != nil {
		o.log.Warn("orchestrator: ingest partially failed",
			slog.String("source", src.Name()),
			slog.String("summary", res.Summary()),
			slog.String("error", err.Error()),
		)
	}
	return res, err
}

// ReindexResult reports the outcome of a reindex.
type ReindexResult struct {
	// Collection is the new active collection.
	Collection string
	// Documents is the number of documents rebuilt.
	Documents int
	// Written is the number of chunks stored.
	Written int
	// Failed is always zero on success; any failure aborts the reindex.
	Failed int
}

// Reindex rebuilds every registered document into a fresh collection and
// swaps it in once the build succeeded. On failure the fresh collection is
// dropped and the previous one stays active. The old collection is dropped
// after the swap.
func (o *Orchestrator) Reindex(ctx context.Context) (*ReindexResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := o.now()
	docs, err := o.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list documents: %w", err)
	}

	name := fmt.Sprintf("%s_%d", o.cfg.Collection, start.UnixNano())
	fresh, err := rag.OpenIndex(ctx, o.store, o.spec(name))
	if err != nil {
		o.metrics.reindexTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	res := &ReindexResult{Collection: name, Documents: len(docs)}
	abort := func(err error) (*ReindexResult, error) {
		o.metrics.reindexTotal.WithLabelValues("error").Inc()
		if derr := fresh.Drop(ctx); derr != nil {
			o.log.Warn("orchestrator: failed to drop abandoned collection",
				slog.String("collection", name),
				slog.String("error", derr.Error()),
			)
		}
		o.logFailure("orchestrator: reindex aborted", err, slog.String("collection", name))
		return nil, err
	}

	for _, doc := range docs {
		src, err := doc.Open()
		if err != nil {
			return abort(fmt.Errorf("orchestrator: reopen %s: %w", doc.Source, err))
		}
		r, err := o.pipeline.Ingest(ctx, fresh, src)
		if err != nil {
			return abort(fmt.Errorf("orchestrator: rebuild %s: %w", doc.Source, err))
		}
		res.Written += r.Written
	}

	if err := o.registry.SetActiveCollection(ctx, name); err != nil {
		return abort(fmt.Errorf("orchestrator: record active collection: %w", err))
	}
	o.swap.Lock()
	old := o.index.Swap(fresh)
	o.swap.Unlock()

	if old != nil && old.Name() != name {
		if err := old.Drop(ctx); err != nil {
			o.log.Warn("orchestrator: failed to drop previous collection",
				slog.String("collection", old.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	o.metrics.reindexTotal.WithLabelValues("ok").Inc()
	o.log.Info("orchestrator: reindex complete",
		slog.String("collection", name),
		slog.Int("documents", res.Documents),
		slog.Int("chunks", res.Written),
		slog.Duration("duration", o.now().Sub(start)),
	)
	return res, nil
}

// Stats is a lightweight read of the active collection.
type Stats struct {
	// ChunkCount is the number of stored chunks.
	ChunkCount int
	// DocumentCount is the number of registered documents.
	DocumentCount int
	// Collection is the active collection name.
	Collection string
}

// Stats returns the chunk and document counts.
func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	o.swap.RLock()
	ix := o.Index()
	chunks, err := ix.Count(ctx)
	o.swap.RUnlock()
	if err != nil {
		return nil, err
	}
	docs, err := o.registry.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: count documents: %w", err)
	}
	return &Stats{ChunkCount: chunks, DocumentCount: docs, Collection: ix.Name()}, nil
}

// search runs a top-k search against the active index.
func (o *Orchestrator) search(ctx context.Context, vec []float32) ([]rag.Result, error) {
	o.swap.RLock()
	defer o.swap.RUnlock()
	return o.retriever.Search(ctx, vec, o.cfg.TopK)
}

// ClearSession forgets the conversation of session.
func (o *Orchestrator) ClearSession(ctx context.Context, session string) error {
	if session == "" {
		return nil
	}
	if err := o.sessions.Clear(ctx, session); err != nil {
		return fmt.Errorf("orchestrator: clear session: %w", err)
	}
	return nil
}

// logFailure logs upstream failures at error level. Validation failures are
// expected and only logged at debug.
func (o *Orchestrator) logFailure(msg string, err error, attrs ...any) {
	if err == nil {
		return
	}
	attrs = append(attrs, slog.String("code", rag.CodeOf(err)), slog.String("error", err.Error()))
	if errors.Is(err, rag.ErrValidation) {
		o.log.Debug(msg, attrs...)
		return
	}
	o.log.Error(msg, attrs...)
}
