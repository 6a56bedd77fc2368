package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewStatsCmd constructs the `ragchat stats` command.
func NewStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the active collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			a, err := buildApp(ctx, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.orch.Stats(ctx)
			if err != nil {
				return userError(log, err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"chunk_count":    st.ChunkCount,
					"document_count": st.DocumentCount,
					"collection":     st.Collection,
				})
			}
			fmt.Fprintf(out, "collection: %s\ndocuments:  %d\nchunks:     %d\n",
				st.Collection, st.DocumentCount, st.ChunkCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
