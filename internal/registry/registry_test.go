package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/ragchat-go/internal/source"
)

// registries runs fn against every Registry implementation.
func registries(t *testing.T, fn func(t *testing.T, r Registry)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, NewMemory())
	})
	t.Run("bolt", func(t *testing.T) {
		t.Parallel()
		b, err := OpenBolt(filepath.Join(t.TempDir(), "registry.db"))
		if err != nil {
			t.Fatalf("open bolt: %v", err)
		}
		t.Cleanup(func() { _ = b.Close() })
		fn(t, b)
	})
}

func TestRegistry_PutAndList(t *testing.T) {
	t.Parallel()
	registries(t, func(t *testing.T, r Registry) {
		ctx := context.Background()
		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		_ = r.Put(ctx, Document{Source: "b.txt", Kind: source.KindText, Raw: []byte("bee"), IngestedAt: t0.Add(time.Minute)})
		_ = r.Put(ctx, Document{Source: "a.html", Kind: source.KindMarkup, Raw: []byte("<p>a</p>"), IngestedAt: t0})

		docs, err := r.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(docs) != 2 || docs[0].Source != "a.html" || docs[1].Source != "b.txt" {
			t.Fatalf("want a.html then b.txt, got %+v", docs)
		}
		if string(docs[1].Raw) != "bee" || docs[0].Kind != source.KindMarkup {
			t.Errorf("document fields not preserved: %+v", docs)
		}
		if n, _ := r.Count(ctx); n != 2 {
			t.Errorf("count: got %d", n)
		}
	})
}

func TestRegistry_ReplaceKeepsIngestTime(t *testing.T) {
	t.Parallel()
	registries(t, func(t *testing.T, r Registry) {
		ctx := context.Background()
		first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		_ = r.Put(ctx, Document{Source: "doc", Raw: []byte("v1"), IngestedAt: first})
		_ = r.Put(ctx, Document{Source: "doc", Raw: []byte("v2"), IngestedAt: first.Add(time.Hour)})

		docs, _ := r.List(ctx)
		if len(docs) != 1 {
			t.Fatalf("want 1 document, got %d", len(docs))
		}
		if string(docs[0].Raw) != "v2" {
			t.Errorf("raw: got %q, want v2", docs[0].Raw)
		}
		if !docs[0].IngestedAt.Equal(first) {
			t.Errorf("ingested_at changed to %v", docs[0].IngestedAt)
		}
	})
}

func TestRegistry_ActiveCollection(t *testing.T) {
	t.Parallel()
	registries(t, func(t *testing.T, r Registry) {
		ctx := context.Background()
		if name, _ := r.ActiveCollection(ctx); name != "" {
			t.Errorf("fresh registry active = %q", name)
		}
		if err := r.SetActiveCollection(ctx, "rag_documents_123"); err != nil {
			t.Fatalf("set: %v", err)
		}
		if name, _ := r.ActiveCollection(ctx); name != "rag_documents_123" {
			t.Errorf("active = %q", name)
		}
	})
}

func TestDocument_Open(t *testing.T) {
	t.Parallel()
	src, err := Document{Source: "p.html", Kind: source.KindMarkup, Raw: []byte("<p>hi</p>")}.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	text, _ := src.Extract(context.Background())
	if text != "hi" {
		t.Errorf("text: got %q", text)
	}
}
