// Package ingestion implements the document ingestion pipeline: extract the
// text of a source, chunk it, embed the chunks in batches and upsert them into
// an index. A batch that fails to embed is retried chunk by chunk so one bad
// chunk does not sink its neighbours, and the result reports exactly how many
// chunks were written.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ragchat-go/internal/chunker"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/source"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of runes per chunk.
	// Defaults to chunker.DefaultSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of runes shared by consecutive chunks.
	ChunkOverlap int

	// BatchSize is the number of chunks sent per embedding call.
	// Defaults to 16 if zero.
	BatchSize int

	// Concurrency is the number of batches embedded in parallel.
	// Defaults to 4 if zero.
	Concurrency int
}

// Result reports the outcome of ingesting one source.
type Result struct {
	// Source is the chunk source label.
	Source string
	// Chunks is the number of chunks the text was split into.
	Chunks int
	// Written is the number of chunks stored.
	Written int
	// Failed is the number of chunks that could not be embedded or stored.
	Failed int
}

// Summary renders the outcome for users, e.g. "4 succeeded, 1 failed".
func (r *Result) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed", r.Written, r.Failed)
}

// Pipeline orchestrates the extract → chunk → embed → upsert flow.
// It is safe for concurrent use.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// splitter divides extracted text into chunks.
	splitter *chunker.Splitter

	// cfg holds the resolved pipeline configuration.
	cfg Config

	// log is the structured logger for progress events.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline. Invalid chunk settings are a
// validation error.
func NewPipeline(embedder rag.Embedder, cfg Config, log *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, rag.E(rag.KindValidation, "ingestion.new", err.Error(), err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{embedder: embedder, splitter: splitter, cfg: cfg, log: log}, nil
}

// Chunk splits text into chunks labelled with name.
func (p *Pipeline) Chunk(name, text string) []rag.Chunk {
	spans := p.splitter.Split(text)
	chunks := make([]rag.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = rag.Chunk{ID: rag.ChunkID(name, i), Text: s.Text, Source: name, Seq: i}
	}
	return chunks
}

// Ingest extracts, chunks, embeds and stores src into ix.
//
// When every chunk is written the error is nil. When some fail the result is
// returned with an ErrPartialIngest. When all fail the first underlying
// error is returned, so an unreachable backend reports as such.
func (p *Pipeline) Ingest(ctx context.Context, ix *rag.Index, src source.Source) (*Result, error) {
	text, err := src.Extract(ctx)
	if err != nil {
		return nil, rag.E(rag.KindValidation, "ingestion.extract", "The document could not be read.", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, rag.E(rag.KindValidation, "ingestion.extract", "The document contains no text.", nil)
	}

	chunks := p.Chunk(src.Name(), text)
	res := &Result{Source: src.Name(), Chunks: len(chunks)}
	p.log.Info("ingestion: chunked document",
		slog.String("source", src.Name()),
		slog.String("kind", string(src.Kind())),
		slog.Int("chunks", len(chunks)),
	)

	var (
		mu       sync.Mutex
		firstErr error
	)
	record := func(written, failed int, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.Written += written
		res.Failed += failed
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		batch := chunks[start:min(start+p.cfg.BatchSize, len(chunks))]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				record(0, len(batch), err)
				return nil
			}
			record(p.ingestBatch(gctx, ix, batch))
			return nil
		})
	}
	_ = g.Wait()

	p.log.Info("ingestion: document stored",
		slog.String("source", src.Name()),
		slog.Int("written", res.Written),
		slog.Int("failed", res.Failed),
	)

	switch {
	case res.Failed == 0:
		return res, nil
	case res.Written == 0:
		return res, firstErr
	default:
		return res, rag.E(rag.KindPartialIngest, "ingestion.ingest",
			fmt.Sprintf("Indexed %s of %s: %s.", plural(res.Written), src.Name(), res.Summary()), firstErr)
	}
}

// ingestBatch embeds and upserts batch, falling back to one chunk at a time
// when the batch embedding fails.
func (p *Pipeline) ingestBatch(ctx context.Context, ix *rag.Index, batch []rag.Chunk) (int, int, error) {
	vecs, err := p.embedder.Embed(ctx, texts(batch))
	if err == nil {
		return p.upsert(ctx, ix, batch, vecs)
	}
	if len(batch) == 1 || errors.Is(err, context.Canceled) {
		return 0, len(batch), err
	}

	p.log.Warn("ingestion: batch embedding failed, retrying chunk by chunk",
		slog.String("source", batch[0].Source),
		slog.Int("first_seq", batch[0].Seq),
		slog.Int("batch", len(batch)),
		slog.String("error", err.Error()),
	)

	var (
		ok      []rag.Chunk
		okVecs  [][]float32
		failed  int
		lastErr error
	)
	for _, c := range batch {
		v, err := p.embedder.Embed(ctx, []string{c.Text})
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		ok = append(ok, c)
		okVecs = append(okVecs, v[0])
	}
	written, upsertFailed, upsertErr := p.upsert(ctx, ix, ok, okVecs)
	if upsertErr != nil {
		lastErr = upsertErr
	}
	return written, failed + upsertFailed, lastErr
}

func (p *Pipeline) upsert(ctx context.Context, ix *rag.Index, chunks []rag.Chunk, vecs [][]float32) (int, int, error) {
	if len(chunks) == 0 {
		return 0, 0, nil
	}
	n, err := ix.Upsert(ctx, chunks, vecs)
	if err != nil {
		return 0, len(chunks), err
	}
	return n, len(chunks) - n, nil
}

func texts(chunks []rag.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func plural(n int) string {
	if n == 1 {
		return "1 chunk"
	}
	return fmt.Sprintf("%d chunks", n)
}
