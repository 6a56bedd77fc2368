package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragchat-go/internal/provider"
)

// LLMPinger probes a chat backend through its token-free health check.
type LLMPinger struct {
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger. It returns nil when the backend has
// no health check, so callers can skip it.
func NewLLMPinger(hc provider.HealthCheckConfig, name string) *LLMPinger {
	if hc == nil {
		return nil
	}
	return &LLMPinger{healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping runs the backend health check.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if err := p.healthCheck.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// PingFunc adapts a named probe function, such as an embedder's Ping, to
// the Pinger interface.
type PingFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

// Name returns Label.
func (p PingFunc) Name() string { return p.Label }

// Ping calls Fn.
func (p PingFunc) Ping(ctx context.Context) error { return p.Fn(ctx) }
