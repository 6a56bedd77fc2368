package embedder

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestValidate_WarnsOnChatModel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	if err := Validate(Config{Provider: "ollama", Model: "qwen2.5:3b"}, log); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(buf.String(), "looks like a chat model") {
		t.Errorf("expected chat-model warning, got %q", buf.String())
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.DiscardHandler)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"openai key", Config{Provider: "openai"}},
		{"azure key", Config{Provider: "azure", Endpoint: "https://x"}},
		{"azure endpoint", Config{Provider: "azure", APIKey: "k"}},
		{"negative dims", Config{Provider: "ollama", Dimensions: -1}},
		{"unknown provider", Config{Provider: "bedrock"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := Validate(tt.cfg, log); err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()
	for model, want := range map[string]bool{
		"qwen2.5:3b":             true,
		"llama3.2":               true,
		"gpt-4o-mini":            true,
		"nomic-embed-text":       false,
		"qwen3-embedding:0.6b":   false,
		"mxbai-embed-large":      false,
		"bge-m3":                 false,
		"all-minilm":             false,
		"text-embedding-3-small": false,
	} {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
}
