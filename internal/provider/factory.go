package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
)

// New constructs a chat model from an explicit Config, delegating to the
// appropriate backend constructor. It validates the config first so callers
// get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		m   model.BaseChatModel
		err error
	)
	switch cfg.Backend {
	case BackendOllama:
		m, err = newOllama(ctx, cfg)
	case BackendOpenAI:
		m, err = newOpenAI(ctx, cfg)
	case BackendAzure:
		m, err = newAzure(ctx, cfg)
	case BackendBedrock:
		m, err = newBedrock(ctx, cfg)
	case BackendGemini:
		m, err = newGemini(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("provider: construct %s model: %w", cfg.Backend, err)
	}
	return m, nil
}

// NewHealthCheck returns a token-free readiness probe for backends that
// offer one, or nil.
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	if cfg.Backend == BackendOllama {
		return &ollamaHealth{host: strings.TrimRight(ollamaHost(cfg), "/"), client: &http.Client{}}
	}
	return nil
}

// SupportsSampling reports whether temperature and top_p may be sent to the
// configured model.
func SupportsSampling(cfg *Config) bool {
	return !(cfg.Backend == BackendAzure && isAzureReasoningModel(cfg.AzureOpenAI.Deployment))
}

func ollamaHost(cfg *Config) string {
	if cfg.Ollama.Host == "" {
		return "http://localhost:11434"
	}
	return cfg.Ollama.Host
}

// ollamaHealth probes GET /api/tags, which lists local models without
// loading one.
type ollamaHealth struct {
	host   string
	client *http.Client
}

// HealthCheck implements HealthCheckConfig.
func (h *ollamaHealth) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama: create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: HTTP %d", resp.StatusCode)
	}
	return nil
}
