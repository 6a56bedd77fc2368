// Package tracing wires optional Langfuse tracing into every eino component
// call, including chat model generations made by the orchestrator.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/ragchat-go/internal/config"
)

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. Returns a flush function that must be called
// before process exit to ensure all traces are sent. If Langfuse is not
// configured, both return values are nil and tracing is silently disabled.
func Setup() (callbacks.Handler, func(), bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      config.Lookup("LANGFUSE_HOST"),
		PublicKey: publicKey,
		SecretKey: secretKey,
	})

	return handler, flusher, true
}

// Enable registers the Langfuse handler globally when configured and
// returns the flush function to defer. The returned function is never nil.
func Enable(log *slog.Logger) func() {
	handler, flush, ok := Setup()
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled", slog.String("host", config.Lookup("LANGFUSE_HOST")))
	return flush
}
