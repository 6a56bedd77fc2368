package ingestion_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/54b3r/ragchat-go/internal/ingestion"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/source"
)

// scriptedEmbedder returns a fixed vector per text and fails any call that
// contains a text marked "POISON", or every call when down is set.
type scriptedEmbedder struct {
	mu    sync.Mutex
	dim   int
	down  bool
	calls int
}

func (e *scriptedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.down {
		return nil, rag.E(rag.KindUpstreamUnavailable, "embed", "", errors.New("connection refused"))
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "POISON") {
			return nil, rag.E(rag.KindUpstreamUnavailable, "embed", "", errors.New("bad input"))
		}
		v := make([]float32, e.dim)
		v[0] = float32(len(t))
		v[1] = 1
		out[i] = v
	}
	return out, nil
}

var _ = Describe("Pipeline", func() {
	var (
		ctx   context.Context
		store *rag.MemoryStore
		ix    *rag.Index
		emb   *scriptedEmbedder
		log   *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = rag.NewMemoryStore()
		var err error
		ix, err = rag.OpenIndex(ctx, store, rag.CollectionSpec{Name: "docs", Dimension: 4})
		Expect(err).NotTo(HaveOccurred())
		emb = &scriptedEmbedder{dim: 4}
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	newPipeline := func(cfg ingestion.Config) *ingestion.Pipeline {
		p, err := ingestion.NewPipeline(emb, cfg, log)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	Describe("NewPipeline", func() {
		It("rejects an overlap not smaller than the chunk size", func() {
			_, err := ingestion.NewPipeline(emb, ingestion.Config{ChunkSize: 10, ChunkOverlap: 10}, log)
			Expect(errors.Is(err, rag.ErrValidation)).To(BeTrue())
		})

		It("requires an embedder", func() {
			_, err := ingestion.NewPipeline(nil, ingestion.Config{}, log)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Chunk", func() {
		It("labels chunks with the source and a stable id", func() {
			p := newPipeline(ingestion.Config{ChunkSize: 20, ChunkOverlap: 5})
			chunks := p.Chunk("notes.txt", strings.Repeat("word ", 20))
			Expect(len(chunks)).To(BeNumerically(">", 1))
			for i, c := range chunks {
				Expect(c.Source).To(Equal("notes.txt"))
				Expect(c.Seq).To(Equal(i))
				Expect(c.ID).To(Equal(rag.ChunkID("notes.txt", i)))
			}
		})
	})

	Describe("Ingest", func() {
		It("writes every chunk of a healthy document", func() {
			p := newPipeline(ingestion.Config{ChunkSize: 30, ChunkOverlap: 5, BatchSize: 2})
			src := source.PlainText{Label: "a.txt", Body: strings.Repeat("alpha beta gamma. ", 10)}

			res, err := p.Ingest(ctx, ix, src)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(Equal(0))
			Expect(res.Written).To(Equal(res.Chunks))

			n, err := ix.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(res.Chunks))
			Expect(res.Summary()).To(Equal(fmt.Sprintf("%d succeeded, 0 failed", res.Chunks)))
		})

		It("is idempotent when the same source is ingested twice", func() {
			p := newPipeline(ingestion.Config{ChunkSize: 30, ChunkOverlap: 5})
			src := source.PlainText{Label: "a.txt", Body: strings.Repeat("alpha beta gamma. ", 10)}

			first, err := p.Ingest(ctx, ix, src)
			Expect(err).NotTo(HaveOccurred())
			_, err = p.Ingest(ctx, ix, src)
			Expect(err).NotTo(HaveOccurred())

			n, err := ix.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(first.Chunks))
		})

		It("rejects a document without text", func() {
			p := newPipeline(ingestion.Config{})
			_, err := p.Ingest(ctx, ix, source.PlainText{Label: "empty.txt", Body: "  \n\n "})
			Expect(errors.Is(err, rag.ErrValidation)).To(BeTrue())
			Expect(emb.calls).To(Equal(0))
		})

		It("stores the rest of a batch of five when one chunk fails", func() {
			p := newPipeline(ingestion.Config{ChunkSize: 9, ChunkOverlap: 0, BatchSize: 8})
			body := "alpha01\n\nbravo02\n\nPOISON3\n\ndelta04\n\necho005"
			res, err := p.Ingest(ctx, ix, source.PlainText{Label: "mixed.txt", Body: body})

			Expect(errors.Is(err, rag.ErrPartialIngest)).To(BeTrue())
			Expect(res.Chunks).To(Equal(5))
			Expect(res.Written).To(Equal(4))
			Expect(res.Failed).To(Equal(1))
			Expect(res.Summary()).To(Equal("4 succeeded, 1 failed"))
			Expect(rag.UserMessage(err)).To(ContainSubstring("4 succeeded, 1 failed"))

			n, err := ix.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(4))
		})

		It("surfaces the backend error when nothing could be written", func() {
			emb.down = true
			p := newPipeline(ingestion.Config{ChunkSize: 10, ChunkOverlap: 0})
			res, err := p.Ingest(ctx, ix, source.PlainText{Label: "b.txt", Body: "some text here to split"})

			Expect(errors.Is(err, rag.ErrUpstreamUnavailable)).To(BeTrue())
			Expect(res.Written).To(Equal(0))
			Expect(res.Failed).To(Equal(res.Chunks))
		})

		It("rejects vectors of the wrong dimension", func() {
			emb.dim = 3
			p := newPipeline(ingestion.Config{ChunkSize: 50})
			_, err := p.Ingest(ctx, ix, source.PlainText{Label: "c.txt", Body: "short text"})
			Expect(errors.Is(err, rag.ErrDimensionMismatch)).To(BeTrue())
		})
	})
})
