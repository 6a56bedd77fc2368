package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/embedder"
	"github.com/54b3r/ragchat-go/internal/ingestion"
	"github.com/54b3r/ragchat-go/internal/orchestrator"
	"github.com/54b3r/ragchat-go/internal/provider"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/registry"
	"github.com/54b3r/ragchat-go/internal/server"
	"github.com/54b3r/ragchat-go/internal/store"
	"github.com/54b3r/ragchat-go/internal/tracing"
)

// app is a fully wired pipeline plus the resources to release on exit.
type app struct {
	settings *config.Settings
	orch     *orchestrator.Orchestrator
	pingers  []server.Pinger
	closers  []func() error
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp resolves Settings from the environment and wires the vector
// store, embedder, generator, session store, registry and orchestrator.
// reg receives the orchestrator metrics; nil keeps them private.
func buildApp(ctx context.Context, log *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	s, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	a := &app{settings: s}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	flush := tracing.Enable(log)
	a.closers = append(a.closers, func() error { flush(); return nil })

	vectors, err := buildVectorStore(s, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, vectors.Close)
	if qs, ok := vectors.(*rag.QdrantStore); ok {
		a.pingers = append(a.pingers, server.NewQdrantPinger(qs.Client()))
	}

	if err := embedder.Validate(s.Embedding, log); err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	raw, err := embedder.New(s.Embedding)
	if err != nil {
		return nil, err
	}
	if p, ok := raw.(interface{ Ping(context.Context) error }); ok {
		a.pingers = append(a.pingers, server.PingFunc{Label: "embedder", Fn: p.Ping})
	}
	emb := embedder.NewClient(raw, s.Embedding.Dimensions,
		embedder.WithTimeout(s.EmbedTimeout),
		embedder.WithLogger(log),
	)
	log.Info("embedder initialised",
		slog.String("provider", s.Embedding.Provider),
		slog.String("model", s.Embedding.Model),
		slog.Int("dimensions", s.Embedding.Dimensions),
	)

	gen, err := provider.NewGeneratorFromConfig(ctx, &s.Provider, s.GenTimeout, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	if p := server.NewLLMPinger(provider.NewHealthCheck(&s.Provider), string(s.Provider.Backend)); p != nil {
		a.pingers = append(a.pingers, p)
	}
	log.Info("provider initialised",
		slog.String("provider", string(s.Provider.Backend)),
		slog.String("model", s.Provider.ModelName()),
	)

	sessions, err := buildSessionStore(s, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sessions.Close)

	docs, err := buildRegistry(s, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, docs.Close)

	pipe, err := ingestion.NewPipeline(emb, ingestion.Config{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
		BatchSize:    s.IngestBatchSize,
		Concurrency:  s.IngestConcurrency,
	}, log)
	if err != nil {
		return nil, err
	}

	a.orch, err = orchestrator.New(ctx, orchestrator.Config{
		Collection:       s.Collection,
		Dimension:        s.Embedding.Dimensions,
		Metric:           s.Metric,
		TopK:             s.TopK,
		Persona:          s.Persona,
		MaxContextTokens: s.MaxContextTokens,
	}, orchestrator.Deps{
		Store:     vectors,
		Embedder:  emb,
		Generator: gen,
		Sessions:  sessions,
		Registry:  docs,
		Pipeline:  pipe,
		Metrics:   reg,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func buildVectorStore(s *config.Settings, log *slog.Logger) (rag.VectorStore, error) {
	if s.VectorBackend == config.BackendMemory {
		log.Warn("vector store: in-memory backend, the index is lost on exit")
		return rag.NewMemoryStore(), nil
	}
	qs, err := rag.NewQdrantStore(s.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", s.Qdrant.Host, s.Qdrant.Port, err)
	}
	log.Info("qdrant store ready", slog.String("host", s.Qdrant.Host), slog.Int("port", s.Qdrant.Port))
	return qs, nil
}

func buildSessionStore(s *config.Settings, log *slog.Logger) (store.SessionStore, error) {
	if s.SessionBackend != config.BackendSQLite {
		return store.NewMemorySessionStore(s.HistoryWindow, s.SessionTTL), nil
	}
	path := s.SessionDB
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
	}
	ss, err := store.Open(path, s.HistoryWindow)
	if err != nil {
		return nil, err
	}
	log.Info("session store opened", slog.String("path", path))
	return ss, nil
}

func buildRegistry(s *config.Settings, log *slog.Logger) (registry.Registry, error) {
	if s.RegistryPath == config.BackendMemory {
		return registry.NewMemory(), nil
	}
	path := s.RegistryPath
	if path == "" {
		var err error
		if path, err = registry.DefaultPath(); err != nil {
			return nil, fmt.Errorf("document registry: %w", err)
		}
	}
	r, err := registry.OpenBolt(path)
	if err != nil {
		return nil, err
	}
	log.Info("document registry opened", slog.String("path", path))
	return r, nil
}

// userError converts a pipeline failure into the message shown on the
// terminal. The full cause is logged at debug level.
func userError(log *slog.Logger, err error) error {
	if err == nil {
		return nil
	}
	log.Debug("command failed", slog.Any("error", err))
	if rag.KindOf(err) == rag.KindUnknown {
		return err
	}
	return fmt.Errorf("%s (%s)", rag.UserMessage(err), rag.CodeOf(err))
}

// printSources writes the citation list of an answer.
func printSources(w io.Writer, sources []orchestrator.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(w, "  [%s #%d] score=%.3f\n", s.Source, s.Seq, s.Score)
	}
}
