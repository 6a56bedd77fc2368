package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/ragchat-go/internal/embedder"
	"github.com/54b3r/ragchat-go/internal/provider"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// Vector and session backends.
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Settings is the resolved, typed configuration of a ragchat process.
type Settings struct {
	// Provider selects and parameterises the chat model.
	Provider provider.Config
	// GenTimeout bounds one generation, retry included.
	GenTimeout time.Duration

	// Embedding selects and parameterises the embedding backend.
	Embedding embedder.Config
	// EmbedTimeout bounds one embedding call, retry included.
	EmbedTimeout time.Duration

	// VectorBackend is BackendQdrant or BackendMemory.
	VectorBackend string
	// Collection is the base collection name.
	Collection string
	// Metric is the similarity metric of the collection.
	Metric rag.Metric
	// Qdrant holds the Qdrant connection settings.
	Qdrant rag.QdrantConfig

	ChunkSize         int
	ChunkOverlap      int
	IngestBatchSize   int
	IngestConcurrency int

	// TopK is the number of retrieved chunks; zero disables retrieval.
	TopK int
	// HistoryWindow is the number of turns kept per session.
	HistoryWindow int
	// MaxContextTokens is the prompt budget.
	MaxContextTokens int
	// Persona selects the system prompt.
	Persona string

	// SessionBackend is BackendMemory or BackendSQLite.
	SessionBackend string
	// SessionTTL is the idle lifetime of in-memory sessions.
	SessionTTL time.Duration
	// SessionDB is the SQLite path; empty selects the default location.
	SessionDB string
	// RegistryPath is the bbolt path, BackendMemory, or empty for the default.
	RegistryPath string

	// APIKey is the Bearer token for the HTTP API; empty disables auth.
	APIKey    string
	RateLimit float64
	RateBurst int
}

// FromEnv resolves Settings from the environment and the Options defaults.
// Every malformed value is reported, not just the first.
func FromEnv() (*Settings, error) {
	p := &parser{}
	s := &Settings{
		Provider: provider.Config{
			Backend: provider.Backend(strings.ToLower(Lookup("MODEL_PROVIDER"))),
			Ollama: provider.ProviderOllama{
				Host:  Lookup("OLLAMA_HOST"),
				Model: Lookup("OLLAMA_MODEL"),
			},
			OpenAI: provider.ProviderOpenAI{
				APIKey: Lookup("OPENAI_API_KEY"),
				Model:  Lookup("OPENAI_MODEL"),
			},
			AzureOpenAI: provider.ProviderAzureOpenAI{
				APIKey:     Lookup("AZURE_OPENAI_API_KEY"),
				Endpoint:   Lookup("AZURE_OPENAI_ENDPOINT"),
				Deployment: Lookup("AZURE_OPENAI_DEPLOYMENT"),
				APIVersion: Lookup("AZURE_OPENAI_API_VERSION"),
			},
			Bedrock: provider.ProviderBedrock{
				AWSRegion: Lookup("AWS_REGION"),
				ModelID:   Lookup("BEDROCK_MODEL_ID"),
				BaseURL:   Lookup("BEDROCK_BASE_URL"),
				APIKey:    Lookup("BEDROCK_API_KEY"),
			},
			Gemini: provider.ProviderGemini{
				APIKey: Lookup("GOOGLE_API_KEY"),
				Model:  Lookup("GEMINI_MODEL"),
			},
			Tuning: provider.SharedTuning{
				MaxTokens:   p.intVal("GEN_MAX_TOKENS", 0),
				Temperature: p.float32Val("GEN_TEMPERATURE", 0, 2),
				TopP:        p.float32Val("GEN_TOP_P", 0, 1),
			},
		},
		GenTimeout:        p.durationVal("GEN_TIMEOUT"),
		EmbedTimeout:      p.durationVal("EMBED_TIMEOUT"),
		VectorBackend:     strings.ToLower(Lookup("VECTOR_BACKEND")),
		Collection:        Lookup("VECTOR_COLLECTION"),
		Qdrant:            rag.QdrantConfig{Host: Lookup("QDRANT_HOST"), Port: p.intVal("QDRANT_PORT", 1), APIKey: Lookup("QDRANT_API_KEY"), UseTLS: p.boolVal("QDRANT_TLS")},
		ChunkSize:         p.intVal("CHUNK_SIZE", 1),
		ChunkOverlap:      p.intVal("CHUNK_OVERLAP", 0),
		IngestBatchSize:   p.intVal("INGEST_BATCH_SIZE", 1),
		IngestConcurrency: p.intVal("INGEST_CONCURRENCY", 1),
		TopK:              p.intVal("RAG_TOP_K", 0),
		HistoryWindow:     p.intVal("HISTORY_WINDOW", 1),
		MaxContextTokens:  p.intVal("MAX_CONTEXT_TOKENS", 1),
		Persona:           strings.ToLower(Lookup("RAGCHAT_PERSONA")),
		SessionBackend:    strings.ToLower(Lookup("SESSION_BACKEND")),
		SessionTTL:        p.durationVal("SESSION_TTL"),
		SessionDB:         Lookup("RAGCHAT_SESSION_DB"),
		RegistryPath:      Lookup("RAGCHAT_REGISTRY"),
		APIKey:            Lookup("RAGCHAT_API_KEY"),
		RateLimit:         p.floatVal("RATE_LIMIT_RPS"),
		RateBurst:         p.intVal("RATE_LIMIT_BURST", 1),
	}

	metric, err := rag.ParseMetric(strings.ToLower(Lookup("VECTOR_METRIC")))
	p.add(err)
	s.Metric = metric

	s.Embedding = embeddingFromEnv(s.Provider, p)

	if s.ChunkOverlap >= s.ChunkSize {
		p.add(fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", s.ChunkOverlap, s.ChunkSize))
	}
	switch s.VectorBackend {
	case BackendQdrant, BackendMemory:
	default:
		p.add(fmt.Errorf("VECTOR_BACKEND must be qdrant or memory, got %q", s.VectorBackend))
	}
	switch s.SessionBackend {
	case BackendMemory, BackendSQLite:
	default:
		p.add(fmt.Errorf("SESSION_BACKEND must be memory or sqlite, got %q", s.SessionBackend))
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return s, nil
}

// embeddingFromEnv resolves the embedding backend. Unset values follow the
// chat provider where it can also embed.
func embeddingFromEnv(chat provider.Config, p *parser) embedder.Config {
	backend := strings.ToLower(Lookup("EMBEDDING_PROVIDER"))
	if backend == "" {
		switch chat.Backend {
		case provider.BackendOpenAI, provider.BackendAzure:
			backend = string(chat.Backend)
		default:
			backend = "ollama"
		}
	}

	cfg := embedder.Config{
		Provider:   backend,
		Model:      Lookup("EMBEDDING_MODEL"),
		Endpoint:   Lookup("EMBEDDING_ENDPOINT"),
		APIKey:     Lookup("EMBEDDING_API_KEY"),
		APIVersion: Lookup("EMBEDDING_API_VERSION"),
		Dimensions: p.intVal("EMBEDDING_DIMENSIONS", 0),
	}
	switch backend {
	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = chat.Ollama.Host
		}
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = chat.OpenAI.APIKey
		}
	case "azure":
		if cfg.APIKey == "" {
			cfg.APIKey = chat.AzureOpenAI.APIKey
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = chat.AzureOpenAI.Endpoint
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = chat.AzureOpenAI.APIVersion
		}
	}
	if cfg.Model == "" {
		cfg.Model = embedder.DefaultModel(backend)
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = embedder.DefaultDimensions(backend)
	}
	return cfg
}

// parser collects conversion errors so all of them are reported at once.
type parser struct {
	errs []error
}

func (p *parser) add(err error) {
	if err != nil {
		p.errs = append(p.errs, err)
	}
}

func (p *parser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid settings: %w", errors.Join(p.errs...))
}

func (p *parser) intVal(key string, lowest int) int {
	raw := Lookup(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.add(fmt.Errorf("%s: %q is not an integer", key, raw))
		return 0
	}
	if n < lowest {
		p.add(fmt.Errorf("%s: must be at least %d, got %d", key, lowest, n))
	}
	return n
}

func (p *parser) floatVal(key string) float64 {
	raw := Lookup(key)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		p.add(fmt.Errorf("%s: %q is not a non-negative number", key, raw))
		return 0
	}
	return f
}

func (p *parser) float32Val(key string, lo, hi float64) float32 {
	raw := Lookup(key)
	f, err := strconv.ParseFloat(raw, 32)
	if err != nil || f < lo || f > hi {
		p.add(fmt.Errorf("%s: %q must be a number in [%g, %g]", key, raw, lo, hi))
		return 0
	}
	return float32(f)
}

func (p *parser) boolVal(key string) bool {
	raw := Lookup(key)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.add(fmt.Errorf("%s: %q is not a boolean", key, raw))
	}
	return b
}

func (p *parser) durationVal(key string) time.Duration {
	raw := Lookup(key)
	d, err := parseDuration(raw)
	if err != nil || d <= 0 {
		p.add(fmt.Errorf("%s: %q is not a positive duration", key, raw))
		return 0
	}
	return d
}
