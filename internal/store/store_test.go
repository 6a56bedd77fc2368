package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteSessionStore for use in tests.
func openTestStore(t *testing.T, window int) *SQLiteSessionStore {
	t.Helper()
	s, err := Open(":memory:", window)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// openMemoryStore opens a MemorySessionStore for use in tests.
func openMemoryStore(t *testing.T, window int) *MemorySessionStore {
	t.Helper()
	s := NewMemorySessionStore(window, time.Hour)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// sessionStores runs fn against every SessionStore implementation.
func sessionStores(t *testing.T, window int, fn func(t *testing.T, s SessionStore)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, openMemoryStore(t, window))
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		fn(t, openTestStore(t, window))
	})
}

func turn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}

func TestConversation_FIFOEviction(t *testing.T) {
	t.Parallel()
	c := NewConversation(3)

	for i := range 5 {
		c.Append(turn(RoleUser, fmt.Sprintf("m%d", i)))
	}
	got := c.Window()
	want := []string{"m2", "m3", "m4"}
	if len(got) != len(want) {
		t.Fatalf("window length: got %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("turn %d: got %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestConversation_WindowIsCopy(t *testing.T) {
	t.Parallel()
	c := NewConversation(2)
	c.Append(turn(RoleUser, "hello"))

	w := c.Window()
	w[0].Content = "mutated"
	if c.Window()[0].Content != "hello" {
		t.Error("Window exposed internal storage")
	}
}

func TestConversation_DefaultCap(t *testing.T) {
	t.Parallel()
	if got := NewConversation(0).Cap(); got != DefaultWindow {
		t.Errorf("cap: got %d, want %d", got, DefaultWindow)
	}
}

func TestSessionStore_AppendAndWindow(t *testing.T) {
	t.Parallel()
	sessionStores(t, 10, func(t *testing.T, s SessionStore) {
		ctx := context.Background()
		if err := s.Append(ctx, "a", turn(RoleUser, "hello"), turn(RoleAssistant, "world")); err != nil {
			t.Fatalf("append: %v", err)
		}
		turns, err := s.Window(ctx, "a")
		if err != nil {
			t.Fatalf("window: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("want 2 turns, got %d", len(turns))
		}
		if turns[0].Role != RoleUser || turns[0].Content != "hello" {
			t.Errorf("turn[0]: want user/hello, got %s/%s", turns[0].Role, turns[0].Content)
		}
		if turns[1].Role != RoleAssistant || turns[1].Content != "world" {
			t.Errorf("turn[1]: want assistant/world, got %s/%s", turns[1].Role, turns[1].Content)
		}
	})
}

func TestSessionStore_WindowCap(t *testing.T) {
	t.Parallel()
	sessionStores(t, 4, func(t *testing.T, s SessionStore) {
		ctx := context.Background()
		for i := range 7 {
			if err := s.Append(ctx, "b", turn(RoleUser, fmt.Sprintf("m%d", i))); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		turns, err := s.Window(ctx, "b")
		if err != nil {
			t.Fatalf("window: %v", err)
		}
		if len(turns) != 4 {
			t.Fatalf("want 4 turns, got %d", len(turns))
		}
		if turns[0].Content != "m3" || turns[3].Content != "m6" {
			t.Errorf("want m3..m6 oldest first, got %q..%q", turns[0].Content, turns[3].Content)
		}
	})
}

func TestSessionStore_Isolation(t *testing.T) {
	t.Parallel()
	sessionStores(t, 10, func(t *testing.T, s SessionStore) {
		ctx := context.Background()
		_ = s.Append(ctx, "x", turn(RoleUser, "from x"))
		_ = s.Append(ctx, "y", turn(RoleUser, "from y"))

		tx, _ := s.Window(ctx, "x")
		ty, _ := s.Window(ctx, "y")
		if len(tx) != 1 || tx[0].Content != "from x" {
			t.Errorf("session x isolation failed: got %v", tx)
		}
		if len(ty) != 1 || ty[0].Content != "from y" {
			t.Errorf("session y isolation failed: got %v", ty)
		}
	})
}

func TestSessionStore_Clear(t *testing.T) {
	t.Parallel()
	sessionStores(t, 10, func(t *testing.T, s SessionStore) {
		ctx := context.Background()
		_ = s.Append(ctx, "c", turn(RoleUser, "forget me"))
		if err := s.Clear(ctx, "c"); err != nil {
			t.Fatalf("clear: %v", err)
		}
		turns, err := s.Window(ctx, "c")
		if err != nil {
			t.Fatalf("window: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("want empty window after clear, got %d", len(turns))
		}
	})
}

func TestSessionStore_UnknownSessionEmpty(t *testing.T) {
	t.Parallel()
	sessionStores(t, 10, func(t *testing.T, s SessionStore) {
		turns, err := s.Window(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("window: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("want 0 turns, got %d", len(turns))
		}
	})
}

func TestSessionStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()
	sessionStores(t, 100, func(t *testing.T, s SessionStore) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Append(ctx, "shared", turn(RoleUser, fmt.Sprintf("m%d", i))); err != nil {
					t.Errorf("append: %v", err)
				}
			}()
		}
		wg.Wait()
		turns, _ := s.Window(ctx, "shared")
		if len(turns) != 20 {
			t.Errorf("want 20 turns, got %d", len(turns))
		}
	})
}

func TestMemorySessionStore_EvictsIdle(t *testing.T) {
	t.Parallel()
	s := openMemoryStore(t, 5)
	ctx := context.Background()

	_ = s.Append(ctx, "old", turn(RoleUser, "x"))
	_ = s.Append(ctx, "fresh", turn(RoleUser, "y"))
	s.mu.Lock()
	s.sessions["old"].lastUsed = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	s.evict(time.Now())
	if s.Len() != 1 {
		t.Fatalf("want 1 live session, got %d", s.Len())
	}
	if turns, _ := s.Window(ctx, "fresh"); len(turns) != 1 {
		t.Error("fresh session was evicted")
	}
}
