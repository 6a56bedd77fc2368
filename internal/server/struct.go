package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/orchestrator"
	"github.com/54b3r/ragchat-go/internal/source"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full generation (default: 5m).
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's collectors. Defaults to
	// [prometheus.DefaultRegisterer].
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// [prometheus.DefaultGatherer].
	MetricsGatherer prometheus.Gatherer
	// FetchClient downloads documents for URL ingests. Nil uses a client
	// with [source.DefaultFetchTimeout].
	FetchClient *http.Client
}

// pipeline is the set of operations the handlers call.
// *orchestrator.Orchestrator satisfies it; tests inject a fake.
type pipeline interface {
	Ask(ctx context.Context, req orchestrator.AskRequest) (*orchestrator.Answer, error)
	Ingest(ctx context.Context, src source.Source) (*orchestrator.IngestResult, error)
	Reindex(ctx context.Context) (*orchestrator.ReindexResult, error)
	Stats(ctx context.Context) (*orchestrator.Stats, error)
	ClearSession(ctx context.Context, session string) error
}

// Server is the HTTP front end of the chat pipeline.
type Server struct {
	// pipeline answers questions and manages the document index.
	pipeline pipeline
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /api/ingest. Exactly one of URL or
// Text must be set.
type ingestRequest struct {
	// URL is fetched and its format detected from the response.
	URL string `json:"url,omitempty"`
	// Text is document content supplied inline.
	Text string `json:"text,omitempty"`
	// Source labels inline text. Defaults to a content hash.
	Source string `json:"source,omitempty"`
	// Kind is the inline text's format: text, markup or pdf.
	Kind string `json:"kind,omitempty"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	Source        string `json:"source"`
	ChunksWritten int    `json:"chunks_written"`
	ChunksFailed  int    `json:"chunks_failed"`
	// Error and Code are set on a partial failure.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Message is the user's question.
	Message string `json:"message"`
	// SessionID continues a conversation. The ragchat_session cookie is used
	// when it is empty.
	SessionID string `json:"session_id,omitempty"`
}

// sourceRef is one retrieved chunk cited by an answer.
type sourceRef struct {
	Source string  `json:"source"`
	Seq    int     `json:"seq"`
	Score  float32 `json:"score"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	Response  string      `json:"response"`
	SessionID string      `json:"session_id"`
	Sources   []sourceRef `json:"sources"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	ChunkCount    int    `json:"chunk_count"`
	DocumentCount int    `json:"document_count"`
	Collection    string `json:"collection"`
}

// reindexResponse is the JSON response for POST /api/reindex.
type reindexResponse struct {
	Collection    string `json:"collection"`
	Documents     int    `json:"documents"`
	ChunksWritten int    `json:"chunks_written"`
	ChunksFailed  int    `json:"chunks_failed"`
}

// clearSessionRequest is the JSON body for POST /api/session/clear.
type clearSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// errorResponse is the JSON body of every failed API call. Error is safe to
// show to an end user; Code is stable for clients.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
