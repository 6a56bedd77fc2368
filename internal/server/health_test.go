package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	s, _ := newTestServer(t, &fakePipeline{})
	s.pingers = pingers
	return s
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakePipeline{})
	w := do(s, http.MethodGet, "/api/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := decodeBody[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")

	tests := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantFailed []string
	}{
		{"no dependencies", nil, http.StatusOK, nil},
		{
			"all healthy",
			[]Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "qdrant"}},
			http.StatusOK, nil,
		},
		{
			"vector store down",
			[]Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "qdrant", err: refused}},
			http.StatusServiceUnavailable, []string{"qdrant"},
		},
		{
			"everything down",
			[]Pinger{&fakePinger{name: "embedder", err: refused}, &fakePinger{name: "qdrant", err: refused}},
			http.StatusServiceUnavailable, []string{"embedder", "qdrant"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := do(newReadyTestServer(t, tc.pingers...), http.MethodGet, "/api/ready", "")
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tc.wantStatus, w.Body.String())
			}

			resp := decodeBody[readyResponse](t, w)
			if resp.Ready != (len(tc.wantFailed) == 0) {
				t.Errorf("ready = %v with failures %v", resp.Ready, tc.wantFailed)
			}
			if resp.Checks == nil || len(resp.Checks) != len(tc.pingers) {
				t.Fatalf("checks = %v, want %d entries", resp.Checks, len(tc.pingers))
			}

			var failed []string
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("checks[%d] = %q, want registration order", i, c.Name)
				}
				if !c.OK {
					if c.Error == "" {
						t.Errorf("%s: failed check without error text", c.Name)
					}
					failed = append(failed, c.Name)
				}
			}
			if len(failed) != len(tc.wantFailed) {
				t.Errorf("failed = %v, want %v", failed, tc.wantFailed)
			}
		})
	}
}

func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	slow := func(name string) Pinger { return &fakePinger{name: name, delay: 200 * time.Millisecond} }
	s := newReadyTestServer(t, slow("ollama"), slow("qdrant"), slow("embedder"))

	start := time.Now()
	w := do(s, http.MethodGet, "/api/ready", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("readiness took %s, probes look sequential", elapsed)
	}
}

func TestPingFunc(t *testing.T) {
	t.Parallel()

	down := errors.New("embedder down")
	p := PingFunc{Label: "embedder", Fn: func(context.Context) error { return down }}

	if p.Name() != "embedder" {
		t.Errorf("Name = %q", p.Name())
	}
	if err := p.Ping(t.Context()); !errors.Is(err, down) {
		t.Errorf("Ping = %v, want %v", err, down)
	}
}

func TestNewLLMPinger_NilHealthCheck(t *testing.T) {
	t.Parallel()

	if p := NewLLMPinger(nil, "openai"); p != nil {
		t.Errorf("expected no pinger, got %+v", p)
	}
}
