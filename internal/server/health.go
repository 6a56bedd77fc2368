package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// probeTimeout bounds each dependency probe during a readiness check.
const probeTimeout = 5 * time.Second

// Pinger reports whether one pipeline dependency (vector store, embedder,
// chat model) is reachable. Implementations must be safe for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in /api/ready, e.g. "qdrant" or "embedder".
	Name() string
}

type readyCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// readyResponse is the body of GET /api/ready. Ready is false when any
// check failed.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleReady probes every registered dependency in parallel and answers 200
// only when all of them respond. /api/health stays a pure liveness check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContextOr(r.Context(), s.log)

	checks := make([]readyCheck, len(s.pingers))
	var g errgroup.Group
	for i, p := range s.pingers {
		g.Go(func() error {
			checks[i] = probe(r.Context(), p)
			return nil
		})
	}
	_ = g.Wait()

	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		if c.OK {
			continue
		}
		resp.Ready = false
		log.Warn("readiness probe failed",
			slog.String("dependency", c.Name),
			slog.String("error", c.Error),
		)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

func probe(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	c := readyCheck{Name: p.Name(), OK: err == nil, Latency: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}
