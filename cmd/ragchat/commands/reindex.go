package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewReindexCmd constructs the `ragchat reindex` command.
func NewReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector collection from every ingested document",
		Long: `Re-chunk and re-embed every registered document into a fresh collection,
then switch to it. Run it after changing CHUNK_SIZE, CHUNK_OVERLAP or the
embedding model. Questions keep using the previous collection until the
rebuild succeeds; on failure the previous collection stays active.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			a, err := buildApp(ctx, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orch.Reindex(ctx)
			if err != nil {
				return userError(log, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d documents (%d chunks) into %s\n",
				res.Documents, res.Written, res.Collection)
			return nil
		},
	}
}
