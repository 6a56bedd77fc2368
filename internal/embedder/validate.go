package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// embeddingMarkers identify dedicated embedding models even when the name
// shares a family prefix with a chat model (qwen3-embedding, gemma-embed).
var embeddingMarkers = []string{"embed", "bge-", "e5-", "gte-", "minilm", "mxbai", "arctic"}

// chatModelFragments identify chat/completion families that produce poor or
// no embeddings.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama", "mistral", "mixtral", "gemma", "phi",
	"claude", "command-r", "deepseek", "qwen",
	"solar", "vicuna", "falcon", "yi-",
}

// looksLikeChatModel reports whether model names a chat family and carries
// no embedding marker.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, m := range embeddingMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, f := range chatModelFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check run at startup so operators get a clear
// error instead of a failure on the first embed call. It rejects clearly
// broken settings and warns when the model looks like a chat model.
func Validate(cfg Config, log *slog.Logger) error {
	switch cfg.Provider {
	case "ollama", "":
	case "openai":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: no OpenAI API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: no Azure API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("embedder: no Azure endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", cfg.Provider)
	}

	if cfg.Dimensions < 0 {
		return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must not be negative, got %d", cfg.Dimensions)
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
