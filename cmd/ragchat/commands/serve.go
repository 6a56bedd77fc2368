package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/server"
)

// NewServeCmd constructs the `ragchat serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragchat HTTP API",
		Long: `Start the ragchat HTTP API.

Routes:
  POST /api/ask            {"message", "session_id"}
  POST /api/ingest         {"url"} or {"text", "source", "kind"}
  POST /api/reindex
  GET  /api/stats
  POST /api/session/clear  {"session_id"}
  GET  /api/health, /api/ready, /metrics

Set RAGCHAT_API_KEY to require "Authorization: Bearer <key>" on /api routes
other than health and readiness.

Examples:
  ragchat serve
  ragchat serve --port 9090
  MODEL_PROVIDER=openai ragchat serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, err := buildApp(ctx, log, prometheus.DefaultRegisterer)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					log.Warn("serve: shutdown cleanup failed", slog.Any("error", cerr))
				}
			}()

			srv, err := server.New(a.orch, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   a.pingers,
				APIKey:    a.settings.APIKey,
				RateLimit: a.settings.RateLimit,
				RateBurst: a.settings.RateBurst,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
