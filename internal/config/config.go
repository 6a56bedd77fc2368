// Package config provides layered configuration for ragchat.
// Values are resolved with the precedence: defaults → YAML file → .env file →
// environment variables. Environment variables always win; the YAML and .env
// layers only fill keys that are still unset.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGCHAT_CONFIG environment variable
//  3. ~/.ragchat/config.yaml
//  4. ./ragchat.yaml
//
// A .env file in the working directory is read before the YAML file.
// If neither exists the system runs entirely from env vars and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the chat model provider.
	Model ModelConfig `yaml:"model"`

	// Generation configures sampling and prompt assembly.
	Generation GenerationConfig `yaml:"generation"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector configures the vector store.
	Vector VectorConfig `yaml:"vector"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Ingest configures chunking and the embedding fan-out.
	Ingest IngestConfig `yaml:"ingest"`

	// Session configures conversation memory.
	Session SessionConfig `yaml:"session"`

	// Registry configures the document registry used by reindex.
	Registry RegistryConfig `yaml:"registry"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, gemini.
	Provider string `yaml:"provider"`

	Ollama  OllamaConfig  `yaml:"ollama"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Azure   AzureConfig   `yaml:"azure"`
	Bedrock BedrockConfig `yaml:"bedrock"`
	Gemini  GeminiConfig  `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// BedrockConfig holds Bedrock provider settings.
type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// GenerationConfig holds sampling and prompt settings.
type GenerationConfig struct {
	Temperature      float32 `yaml:"temperature"`
	TopP             float32 `yaml:"top_p"`
	MaxTokens        int     `yaml:"max_tokens"`
	Timeout          string  `yaml:"timeout"`
	TopK             *int    `yaml:"top_k"`
	HistoryWindow    int     `yaml:"history_window"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	Persona          string  `yaml:"persona"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	Timeout    string `yaml:"timeout"`
}

// VectorConfig selects the vector store and collection.
type VectorConfig struct {
	// Backend is qdrant or memory.
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
	Metric     string `yaml:"metric"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// IngestConfig holds chunking and fan-out settings.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	BatchSize    int `yaml:"batch_size"`
	Concurrency  int `yaml:"concurrency"`
}

// SessionConfig holds conversation memory settings.
type SessionConfig struct {
	// Backend is memory or sqlite.
	Backend string `yaml:"backend"`
	DBPath  string `yaml:"db_path"`
	TTL     string `yaml:"ttl"`
}

// RegistryConfig holds document registry settings.
type RegistryConfig struct {
	// Path is the bbolt file path, or "memory".
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// APIKey is the Bearer token for API authentication. Prefer env var RAGCHAT_API_KEY.
	APIKey    string  `yaml:"api_key"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"AWS_REGION", func(c *Config) string { return c.Model.Bedrock.Region }},
	{"BEDROCK_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.ModelID }},
	{"BEDROCK_BASE_URL", func(c *Config) string { return c.Model.Bedrock.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"GEN_TEMPERATURE", func(c *Config) string { return float32Str(c.Generation.Temperature) }},
	{"GEN_TOP_P", func(c *Config) string { return float32Str(c.Generation.TopP) }},
	{"GEN_MAX_TOKENS", func(c *Config) string { return intStr(c.Generation.MaxTokens) }},
	{"GEN_TIMEOUT", func(c *Config) string { return c.Generation.Timeout }},
	{"RAG_TOP_K", func(c *Config) string { return intPtrStr(c.Generation.TopK) }},
	{"HISTORY_WINDOW", func(c *Config) string { return intStr(c.Generation.HistoryWindow) }},
	{"MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Generation.MaxContextTokens) }},
	{"RAGCHAT_PERSONA", func(c *Config) string { return c.Generation.Persona }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_API_VERSION", func(c *Config) string { return c.Embedding.APIVersion }},
	{"EMBED_TIMEOUT", func(c *Config) string { return c.Embedding.Timeout }},
	{"VECTOR_BACKEND", func(c *Config) string { return c.Vector.Backend }},
	{"VECTOR_COLLECTION", func(c *Config) string { return c.Vector.Collection }},
	{"VECTOR_METRIC", func(c *Config) string { return c.Vector.Metric }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingest.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingest.ChunkOverlap) }},
	{"INGEST_BATCH_SIZE", func(c *Config) string { return intStr(c.Ingest.BatchSize) }},
	{"INGEST_CONCURRENCY", func(c *Config) string { return intStr(c.Ingest.Concurrency) }},
	{"SESSION_BACKEND", func(c *Config) string { return c.Session.Backend }},
	{"RAGCHAT_SESSION_DB", func(c *Config) string { return c.Session.DBPath }},
	{"SESSION_TTL", func(c *Config) string { return c.Session.TTL }},
	{"RAGCHAT_REGISTRY", func(c *Config) string { return c.Registry.Path }},
	{"RAGCHAT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"RATE_LIMIT_RPS", func(c *Config) string { return float64Str(c.Server.RateLimit) }},
	{"RATE_LIMIT_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads .env from the working directory, then a YAML config file, and
// applies their non-empty values as environment variables.
// Existing env vars are never overwritten (env always wins).
// Returns the YAML path that was loaded, or empty string if none was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	// .env goes first so it takes precedence over the YAML file.
	if err := LoadDotEnv(".env", log); err != nil {
		return "", err
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}
	if err := applyYAML(path, log); err != nil {
		return "", err
	}
	return path, nil
}

func applyYAML(path string, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env wins
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return nil
}

// LoadDotEnv applies the KEY=VALUE pairs of path to the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string, log *slog.Logger) error {
	err := godotenv.Load(path)
	switch {
	case err == nil:
		log.Info("config: loaded .env file", slog.String("path", path))
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGCHAT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragchat", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragchat.yaml"); err == nil {
		return "ragchat.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// intPtrStr converts an optional int, keeping an explicit zero.
func intPtrStr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	return float64Str(float64(v))
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
