package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	ollamaapi "github.com/eino-contrib/ollama/api"
	openaiapi "github.com/meguminnnnnnnnn/go-openai"
	"google.golang.org/genai"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// DefaultTimeout bounds a single generation, retries included.
const DefaultTimeout = 120 * time.Second

// Options are per-call sampling settings. Nil or zero fields fall back to
// the Generator defaults; a non-nil Temperature or TopP of 0 is sent as is.
type Options struct {
	Temperature *float32
	TopP        *float32
	MaxTokens   int
	Timeout     time.Duration
}

// Generator produces a single assistant reply from a message list.
// It is safe for concurrent use.
type Generator struct {
	model    model.BaseChatModel
	defaults Options
	sampling bool
	retries  uint64
	log      *slog.Logger
}

// NewGenerator wraps m. defaults supplies sampling values for calls that do
// not set them. When sampling is false temperature and top_p are never sent.
func NewGenerator(m model.BaseChatModel, defaults Options, sampling bool, log *slog.Logger) *Generator {
	if defaults.Timeout <= 0 {
		defaults.Timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{model: m, defaults: defaults, sampling: sampling, retries: 1, log: log}
}

// NewGeneratorFromConfig builds the backend described by cfg and wraps it.
func NewGeneratorFromConfig(ctx context.Context, cfg *Config, timeout time.Duration, log *slog.Logger) (*Generator, error) {
	m, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	temperature, topP := cfg.Tuning.Temperature, cfg.Tuning.TopP
	return NewGenerator(m, Options{
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   cfg.Tuning.MaxTokens,
		Timeout:     timeout,
	}, SupportsSampling(cfg), log), nil
}

// Model returns the wrapped chat model.
func (g *Generator) Model() model.BaseChatModel { return g.model }

// Generate sends msgs to the model and returns the reply text. A deadline
// overrun yields ErrGenerationTimeout; any other failure yields
// ErrGenerationUpstream. Transient failures are retried once.
func (g *Generator) Generate(ctx context.Context, msgs []*schema.Message, opts Options) (string, error) {
	o := g.merge(opts)

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	var callOpts []model.Option
	if g.sampling {
		if o.Temperature != nil {
			callOpts = append(callOpts, model.WithTemperature(*o.Temperature))
		}
		if o.TopP != nil {
			callOpts = append(callOpts, model.WithTopP(*o.TopP))
		}
	}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, model.WithMaxTokens(o.MaxTokens))
	}

	var reply string
	op := func() error {
		resp, err := g.model.Generate(ctx, msgs, callOpts...)
		if err != nil {
			if ctx.Err() != nil || !transient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if resp == nil {
			return errors.New("model returned no message")
		}
		reply = strings.TrimSpace(resp.Content)
		return nil
	}
	notify := func(err error, wait time.Duration) {
		g.log.Warn("provider: generation failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", wait),
		)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, g.retries), ctx), notify)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", rag.E(rag.KindGenerationTimeout, "provider.generate", "",
				fmt.Errorf("no reply within %s: %w", o.Timeout, err))
		}
		return "", rag.E(rag.KindGenerationUpstream, "provider.generate", "", err)
	}
	return reply, nil
}

func (g *Generator) merge(o Options) Options {
	if o.Temperature == nil {
		o.Temperature = g.defaults.Temperature
	}
	if o.TopP == nil {
		o.TopP = g.defaults.TopP
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = g.defaults.MaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = g.defaults.Timeout
	}
	return o
}

// transient reports whether a failed generation is worth retrying: a
// timeout, throttling or server-side status from the backend, or a broken
// connection. Rejections such as a bad key or an unknown model are final.
func transient(err error) bool {
	if code, ok := statusCode(err); ok {
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

// statusCode extracts the HTTP status from the error types the chat model
// clients return.
func statusCode(err error) (int, bool) {
	var (
		oaAPI *openaiapi.APIError
		oaReq *openaiapi.RequestError
		ol    ollamaapi.StatusError
		gem   genai.APIError
	)
	switch {
	case errors.As(err, &oaAPI):
		return oaAPI.HTTPStatusCode, true
	case errors.As(err, &oaReq):
		return oaReq.HTTPStatusCode, true
	case errors.As(err, &ol):
		return ol.StatusCode, true
	case errors.As(err, &gem):
		return gem.Code, true
	}
	return 0, false
}
