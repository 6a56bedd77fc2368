package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// DefaultTimeout bounds a single embedding call, retries included.
const DefaultTimeout = 30 * time.Second

// StatusError is a non-2xx answer from an embedding backend.
type StatusError struct {
	// Backend names the provider ("ollama", "openai").
	Backend string
	// Code is the HTTP status code.
	Code int
	// Message is the backend's error text, or "HTTP <code>".
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s embedder: %s", e.Backend, e.Message)
}

// Temporary reports whether retrying could succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client wraps a backend embedder with a per-call deadline, a single retry of
// transient failures and a check that every vector has the configured
// dimension. Failures are returned as typed rag errors.
type Client struct {
	backend   rag.Embedder
	dimension int
	timeout   time.Duration
	retries   uint64
	log       *slog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a transient failure is retried (default 1).
func WithRetries(n uint64) ClientOption {
	return func(c *Client) { c.retries = n }
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient wraps backend. dimension is the vector length every embedding
// must have; zero disables the check.
func NewClient(backend rag.Embedder, dimension int, opts ...ClientOption) *Client {
	c := &Client{
		backend:   backend,
		dimension: dimension,
		timeout:   DefaultTimeout,
		retries:   1,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dimension returns the configured vector length.
func (c *Client) Dimension() int { return c.dimension }

// Embed implements rag.Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out [][]float32
	op := func() error {
		vecs, err := c.backend.Embed(ctx, texts)
		if err != nil {
			if !transient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = vecs
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	notify := func(err error, wait time.Duration) {
		c.log.Warn("embedder: transient failure, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", wait),
			slog.Int("batch", len(texts)),
		)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx), notify); err != nil {
		return nil, classify(ctx, err)
	}

	if len(out) != len(texts) {
		return nil, rag.E(rag.KindUpstreamUnavailable, "embedder.embed", "",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out)))
	}
	if c.dimension > 0 {
		for _, v := range out {
			if err := rag.CheckDimension(c.dimension, v); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// transient reports whether err is worth retrying.
func transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

// classify maps a final failure onto the rag error taxonomy.
func classify(ctx context.Context, err error) error {
	if rag.KindOf(err) != rag.KindUnknown {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return rag.E(rag.KindUpstreamTimeout, "embedder.embed", "", err)
	}
	return rag.E(rag.KindUpstreamUnavailable, "embedder.embed", "", err)
}
