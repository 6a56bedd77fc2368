package provider

import (
	"context"
	"fmt"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// newOllama constructs a chat model backed by a local Ollama instance.
// Sampling options are sent per request by the Generator.
func newOllama(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: ollamaHost(cfg),
		Model:   cfg.Ollama.Model,
	})
}

// newOpenAI constructs a chat model backed by the OpenAI API.
func newOpenAI(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	c := &einoopenai.ChatModelConfig{
		Model:  cfg.OpenAI.Model,
		APIKey: cfg.OpenAI.APIKey,
	}
	if cfg.Tuning.MaxTokens > 0 {
		c.MaxTokens = &cfg.Tuning.MaxTokens
	}
	return einoopenai.NewChatModel(ctx, c)
}

// newAzure constructs a chat model backed by Azure OpenAI Service.
func newAzure(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	apiVersion := cfg.AzureOpenAI.APIVersion
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}
	c := &einoopenai.ChatModelConfig{
		Model:      cfg.AzureOpenAI.Deployment,
		APIKey:     cfg.AzureOpenAI.APIKey,
		BaseURL:    cfg.AzureOpenAI.Endpoint,
		ByAzure:    true,
		APIVersion: apiVersion,
		// Use the deployment name as-is: the default mapper strips dots and
		// colons, which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	}
	// Reasoning deployments reject max_tokens; leave their default.
	if cfg.Tuning.MaxTokens > 0 && !isAzureReasoningModel(cfg.AzureOpenAI.Deployment) {
		c.MaxTokens = &cfg.Tuning.MaxTokens
	}
	return einoopenai.NewChatModel(ctx, c)
}

// newBedrock constructs a chat model through the Ark runtime pointed at a
// Bedrock-compatible endpoint.
func newBedrock(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	c := &einoark.ChatModelConfig{
		Model:   cfg.Bedrock.ModelID,
		APIKey:  cfg.Bedrock.APIKey,
		BaseURL: cfg.Bedrock.BaseURL,
		Region:  cfg.Bedrock.AWSRegion,
	}
	if cfg.Tuning.MaxTokens > 0 {
		c.MaxTokens = &cfg.Tuning.MaxTokens
	}
	return einoark.NewChatModel(ctx, c)
}

// newGemini constructs a chat model backed by Google Gemini (AI Studio).
func newGemini(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return einogemini.NewChatModel(ctx, &einogemini.Config{
		Client: client,
		Model:  cfg.Gemini.Model,
	})
}
