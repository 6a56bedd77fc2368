// Package provider selects and constructs the chat model that generates
// answers, and wraps it in a [Generator] that applies sampling options,
// deadlines and a single retry. Supported backends: Ollama, OpenAI,
// Azure OpenAI, Ark (Bedrock-compatible endpoint) and Google Gemini.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects an Ark-compatible endpoint fronting AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	APIKey string
	Model  string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderBedrock holds Bedrock settings.
type ProviderBedrock struct {
	AWSRegion string
	ModelID   string
	// BaseURL is the Ark-compatible endpoint. Optional.
	BaseURL string
	// APIKey authenticates against BaseURL. Optional.
	APIKey string
}

// ProviderGemini holds Gemini settings.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// SharedTuning holds sampling defaults applied to every backend.
type SharedTuning struct {
	// MaxTokens caps the generated length. Zero leaves the backend default.
	MaxTokens int
	// Temperature controls randomness.
	Temperature float32
	// TopP is the nucleus sampling cut-off.
	TopP float32
}

// Config holds all provider-level configuration.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Bedrock     ProviderBedrock
	Gemini      ProviderGemini

	// Tuning holds the sampling defaults.
	Tuning SharedTuning
}

// Validate reports missing settings for the selected backend, naming the
// environment variable the operator must set.
func (c *Config) Validate() error {
	missing := func(env string) error {
		return fmt.Errorf("provider: %s backend requires %s", c.Backend, env)
	}
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return missing("OLLAMA_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing("OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return missing("OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return missing("AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return missing("AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return missing("AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendBedrock:
		if c.Bedrock.ModelID == "" {
			return missing("BEDROCK_MODEL_ID")
		}
		if c.Bedrock.AWSRegion == "" {
			return missing("AWS_REGION")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return missing("GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return missing("GEMINI_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, bedrock, gemini)", c.Backend)
	}
	return nil
}

// ModelName returns the model or deployment the config selects.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendBedrock:
		return c.Bedrock.ModelID
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

// HealthCheckConfig is implemented by backends that can report readiness
// without generating tokens.
type HealthCheckConfig interface {
	HealthCheck(ctx context.Context) error
}

// isAzureReasoningModel reports whether an Azure deployment is an o-series or
// codex reasoning model. Those reject temperature and top_p.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, p := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, p) {
			return true
		}
	}
	return false
}
