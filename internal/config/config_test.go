package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/provider"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// unsetEnv clears keys for the duration of the test and restores them after.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// unsetAll clears every recognised option.
func unsetAll(t *testing.T) {
	t.Helper()
	keys := make([]string, len(Options))
	for i, o := range Options {
		keys[i] = o.Key
	}
	unsetEnv(t, keys...)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	unsetAll(t)
	cfgPath := writeFile(t, "config.yaml", `
model:
  provider: azure
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
generation:
  temperature: 0.3
  top_k: 0
  persona: srd
embedding:
  provider: ollama
  model: nomic-embed-text
  timeout: 45s
vector:
  backend: memory
  collection: rules
qdrant:
  host: qdrant.internal
  port: 6334
ingest:
  chunk_size: 500
  chunk_overlap: 50
logging:
  level: debug
  format: text
`)

	loaded, err := Load(cfgPath, logging.Discard())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"GEN_TEMPERATURE":          "0.3",
		"RAG_TOP_K":                "0",
		"RAGCHAT_PERSONA":          "srd",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"EMBED_TIMEOUT":            "45s",
		"VECTOR_BACKEND":           "memory",
		"VECTOR_COLLECTION":        "rules",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"CHUNK_SIZE":               "500",
		"CHUNK_OVERLAP":            "50",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "model:\n  provider: ollama\n")

	// Set before loading; YAML must not overwrite it.
	t.Setenv("MODEL_PROVIDER", "azure")

	if _, err := Load(cfgPath, logging.Discard()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_DotEnvBeatsYAML(t *testing.T) {
	unsetEnv(t, "MODEL_PROVIDER", "OLLAMA_MODEL")
	cfgPath := writeFile(t, "config.yaml", "model:\n  provider: ollama\n  ollama:\n    model: llama3.2\n")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OLLAMA_MODEL=qwen2.5:3b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	if _, err := Load(cfgPath, logging.Discard()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("OLLAMA_MODEL"); got != "qwen2.5:3b" {
		t.Errorf("OLLAMA_MODEL = %q, want the .env value", got)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "ollama" {
		t.Errorf("MODEL_PROVIDER = %q, want the YAML value", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, "config.yaml", "{{invalid yaml")
	if _, err := Load(cfgPath, logging.Discard()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	unsetEnv(t, "OLLAMA_MODEL", "RAG_TOP_K")
	t.Setenv("HISTORY_WINDOW", "3")

	p := writeFile(t, ".env", "OLLAMA_MODEL=qwen2.5:3b\nRAG_TOP_K=2\nHISTORY_WINDOW=99\n")
	if err := LoadDotEnv(p, logging.Discard()); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("OLLAMA_MODEL"); got != "qwen2.5:3b" {
		t.Errorf("OLLAMA_MODEL = %q", got)
	}
	if got := os.Getenv("RAG_TOP_K"); got != "2" {
		t.Errorf("RAG_TOP_K = %q", got)
	}
	if got := os.Getenv("HISTORY_WINDOW"); got != "3" {
		t.Errorf("HISTORY_WINDOW = %q, .env must not override the environment", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()

	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"), logging.Discard()); err != nil {
		t.Errorf("missing .env should not fail: %v", err)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	unsetAll(t)

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if s.Provider.Backend != provider.BackendOllama || s.Provider.Ollama.Model != "llama3.2" {
		t.Errorf("provider = %+v", s.Provider)
	}
	if s.Provider.Tuning.Temperature != 0.7 || s.Provider.Tuning.TopP != 0.9 {
		t.Errorf("tuning = %+v", s.Provider.Tuning)
	}
	if s.Embedding.Provider != "ollama" || s.Embedding.Endpoint != "http://localhost:11434" || s.Embedding.Dimensions != 768 {
		t.Errorf("embedding = %+v", s.Embedding)
	}
	if s.VectorBackend != BackendQdrant || s.Collection != "ragchat" || s.Metric != rag.MetricCosine {
		t.Errorf("vector = %s %s %s", s.VectorBackend, s.Collection, s.Metric)
	}
	if s.ChunkSize != 1000 || s.ChunkOverlap != 200 || s.TopK != 4 || s.HistoryWindow != 10 {
		t.Errorf("pipeline = size %d overlap %d topk %d window %d", s.ChunkSize, s.ChunkOverlap, s.TopK, s.HistoryWindow)
	}
	if s.GenTimeout != 120*time.Second || s.EmbedTimeout != 30*time.Second || s.SessionTTL != 2*time.Hour {
		t.Errorf("timeouts = %s %s %s", s.GenTimeout, s.EmbedTimeout, s.SessionTTL)
	}
	if s.SessionBackend != BackendMemory || s.APIKey != "" {
		t.Errorf("session = %s, api key set = %v", s.SessionBackend, s.APIKey != "")
	}
}

func TestFromEnv_EmbeddingFollowsChatProvider(t *testing.T) {
	unsetAll(t)
	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "k")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://res.openai.azure.com")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	e := s.Embedding
	if e.Provider != "azure" || e.APIKey != "k" || e.Endpoint != "https://res.openai.azure.com" || e.APIVersion != "2024-10-21" {
		t.Errorf("embedding = %+v", e)
	}
	if e.Dimensions != 1536 || e.Model != "text-embedding-3-small" {
		t.Errorf("embedding defaults = %d %s", e.Dimensions, e.Model)
	}
}

func TestFromEnv_RetrievalDisabled(t *testing.T) {
	unsetAll(t)
	t.Setenv("RAG_TOP_K", "0")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if s.TopK != 0 {
		t.Errorf("TopK = %d, want 0", s.TopK)
	}
}

func TestFromEnv_ReportsEveryError(t *testing.T) {
	unsetAll(t)
	t.Setenv("CHUNK_SIZE", "ten")
	t.Setenv("GEN_TOP_P", "1.5")
	t.Setenv("VECTOR_METRIC", "manhattan")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("GEN_TIMEOUT", "soon")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"CHUNK_SIZE", "GEN_TOP_P", "manhattan", "SESSION_BACKEND", "GEN_TIMEOUT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestFromEnv_OverlapMustBeSmallerThanSize(t *testing.T) {
	unsetAll(t)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "CHUNK_OVERLAP") {
		t.Errorf("expected overlap error, got %v", err)
	}
}

func TestDisplay(t *testing.T) {
	unsetEnv(t, "OPENAI_API_KEY", "OLLAMA_MODEL", "AZURE_OPENAI_ENDPOINT")

	secret := Option{Key: "OPENAI_API_KEY", Secret: true}
	if got := Display(secret); got != "unset" {
		t.Errorf("unset secret = %q", got)
	}
	t.Setenv("OPENAI_API_KEY", "sk-123")
	if got := Display(secret); got != "set" {
		t.Errorf("set secret = %q", got)
	}
	if got := Display(Option{Key: "OLLAMA_MODEL", Default: "llama3.2"}); got != "llama3.2 (default)" {
		t.Errorf("default = %q", got)
	}
	if got := Display(Option{Key: "AZURE_OPENAI_ENDPOINT"}); got != "unset" {
		t.Errorf("no default = %q", got)
	}
	if !IsSecret("RAGCHAT_API_KEY") || IsSecret("OLLAMA_HOST") {
		t.Error("IsSecret misclassified a key")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]time.Duration{"90": 90 * time.Second, "1m30s": 90 * time.Second, "2h": 2 * time.Hour} {
		got, err := parseDuration(in)
		if err != nil || got != want {
			t.Errorf("parseDuration(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
}
