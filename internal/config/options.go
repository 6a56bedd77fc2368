package config

import "os"

// Option describes one recognised environment variable.
type Option struct {
	// Key is the environment variable name.
	Key string
	// Default is applied when the variable is unset. Empty means no default.
	Default string
	// Secret values are never printed or logged, only their presence.
	Secret bool
	// Description is a one-line summary shown by `ragchat config`.
	Description string
}

// Options enumerates every recognised variable in display order.
var Options = []Option{
	{Key: "MODEL_PROVIDER", Default: "ollama", Description: "chat backend: ollama, openai, azure, bedrock, gemini"},
	{Key: "OLLAMA_HOST", Default: "http://localhost:11434", Description: "Ollama base URL (chat and embeddings)"},
	{Key: "OLLAMA_MODEL", Default: "llama3.2", Description: "Ollama chat model"},
	{Key: "OPENAI_API_KEY", Secret: true, Description: "OpenAI API key"},
	{Key: "OPENAI_MODEL", Default: "gpt-4o-mini", Description: "OpenAI chat model"},
	{Key: "AZURE_OPENAI_API_KEY", Secret: true, Description: "Azure OpenAI API key"},
	{Key: "AZURE_OPENAI_ENDPOINT", Description: "Azure OpenAI resource endpoint"},
	{Key: "AZURE_OPENAI_DEPLOYMENT", Description: "Azure OpenAI chat deployment"},
	{Key: "AZURE_OPENAI_API_VERSION", Default: "2024-10-21", Description: "Azure OpenAI API version"},
	{Key: "AWS_REGION", Default: "us-east-1", Description: "Bedrock region"},
	{Key: "BEDROCK_MODEL_ID", Description: "Bedrock model identifier"},
	{Key: "BEDROCK_BASE_URL", Description: "Ark-compatible Bedrock endpoint"},
	{Key: "BEDROCK_API_KEY", Secret: true, Description: "Bedrock endpoint API key"},
	{Key: "GOOGLE_API_KEY", Secret: true, Description: "Google AI Studio API key"},
	{Key: "GEMINI_MODEL", Default: "gemini-2.0-flash", Description: "Gemini chat model"},
	{Key: "GEN_TEMPERATURE", Default: "0.7", Description: "sampling temperature"},
	{Key: "GEN_TOP_P", Default: "0.9", Description: "nucleus sampling threshold"},
	{Key: "GEN_MAX_TOKENS", Default: "0", Description: "reply length cap, 0 for the backend default"},
	{Key: "GEN_TIMEOUT", Default: "120s", Description: "generation timeout"},
	{Key: "RAG_TOP_K", Default: "4", Description: "chunks retrieved per question, 0 disables retrieval"},
	{Key: "HISTORY_WINDOW", Default: "10", Description: "turns of conversation memory kept per session"},
	{Key: "MAX_CONTEXT_TOKENS", Default: "6000", Description: "prompt budget; older history is trimmed to fit"},
	{Key: "RAGCHAT_PERSONA", Default: "assistant", Description: "system prompt: assistant, srd, rogerian"},
	{Key: "EMBEDDING_PROVIDER", Description: "embedding backend: ollama, openai, azure (default: MODEL_PROVIDER when supported, else ollama)"},
	{Key: "EMBEDDING_MODEL", Description: "embedding model (default: backend default)"},
	{Key: "EMBEDDING_DIMENSIONS", Default: "0", Description: "embedding vector size, 0 for the model default"},
	{Key: "EMBEDDING_ENDPOINT", Description: "embedding base URL (default: OLLAMA_HOST or the OpenAI API)"},
	{Key: "EMBEDDING_API_KEY", Secret: true, Description: "embedding API key (default: OPENAI_API_KEY or AZURE_OPENAI_API_KEY)"},
	{Key: "EMBEDDING_API_VERSION", Description: "Azure embedding API version (default: AZURE_OPENAI_API_VERSION)"},
	{Key: "EMBED_TIMEOUT", Default: "30s", Description: "embedding timeout"},
	{Key: "VECTOR_BACKEND", Default: "qdrant", Description: "vector store: qdrant or memory"},
	{Key: "VECTOR_COLLECTION", Default: "ragchat", Description: "base collection name"},
	{Key: "VECTOR_METRIC", Default: "cosine", Description: "similarity metric: cosine, dot, euclid"},
	{Key: "QDRANT_HOST", Default: "localhost", Description: "Qdrant host"},
	{Key: "QDRANT_PORT", Default: "6334", Description: "Qdrant gRPC port"},
	{Key: "QDRANT_API_KEY", Secret: true, Description: "Qdrant API key"},
	{Key: "QDRANT_TLS", Default: "false", Description: "use TLS for Qdrant"},
	{Key: "CHUNK_SIZE", Default: "1000", Description: "maximum chunk length in characters"},
	{Key: "CHUNK_OVERLAP", Default: "200", Description: "characters shared by consecutive chunks"},
	{Key: "INGEST_BATCH_SIZE", Default: "16", Description: "chunks per embedding call"},
	{Key: "INGEST_CONCURRENCY", Default: "4", Description: "embedding batches in flight per document"},
	{Key: "SESSION_BACKEND", Default: "memory", Description: "conversation memory: memory or sqlite"},
	{Key: "SESSION_TTL", Default: "2h", Description: "idle session lifetime for the memory backend"},
	{Key: "RAGCHAT_SESSION_DB", Description: "SQLite session database (default: ~/.ragchat/sessions.db)"},
	{Key: "RAGCHAT_REGISTRY", Description: "document registry file, or \"memory\" (default: ~/.ragchat/registry.db)"},
	{Key: "RAGCHAT_API_KEY", Secret: true, Description: "Bearer token required on /api routes"},
	{Key: "RATE_LIMIT_RPS", Default: "10", Description: "requests per second per client IP"},
	{Key: "RATE_LIMIT_BURST", Default: "20", Description: "burst size per client IP"},
	{Key: "LOG_LEVEL", Default: "info", Description: "debug, info, warn, error"},
	{Key: "LOG_FORMAT", Default: "json", Description: "json or text"},
	{Key: "LANGFUSE_PUBLIC_KEY", Secret: true, Description: "Langfuse public key; enables tracing"},
	{Key: "LANGFUSE_SECRET_KEY", Secret: true, Description: "Langfuse secret key"},
	{Key: "LANGFUSE_HOST", Default: "http://localhost:3000", Description: "Langfuse host"},
}

// IsSecret reports whether key holds a secret.
func IsSecret(key string) bool {
	for _, o := range Options {
		if o.Key == key {
			return o.Secret
		}
	}
	return false
}

// Lookup returns the value of key from the environment, falling back to its
// default.
func Lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	for _, o := range Options {
		if o.Key == key {
			return o.Default
		}
	}
	return ""
}

// Display returns the value of o for printing: secrets become "set" or
// "unset", unset non-secrets show their default.
func Display(o Option) string {
	v := os.Getenv(o.Key)
	if o.Secret {
		if v != "" {
			return "set"
		}
		return "unset"
	}
	if v == "" {
		if o.Default == "" {
			return "unset"
		}
		return o.Default + " (default)"
	}
	return v
}
