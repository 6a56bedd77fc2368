// Package commands defines all Cobra CLI commands for the ragchat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/audit"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "ragchat: chat with your documents",
		Long: `ragchat answers questions grounded in documents you ingest.

Documents (plain text, HTML or PDF, from a file, a URL or inline text) are
split into overlapping chunks, embedded and stored in a vector collection.
Each question retrieves the closest chunks and sends them, with the recent
conversation, to the configured chat model.

Configuration comes from environment variables, a .env file and an optional
YAML file (~/.ragchat/config.yaml), in that order of precedence.
Run 'ragchat config' to see every setting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragchat/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewIngestCmd(),
		NewReindexCmd(),
		NewStatsCmd(),
		NewServeCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	)

	return root
}
