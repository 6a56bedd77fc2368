package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/source"
)

// NewIngestCmd constructs the `ragchat ingest` command, which adds documents
// to the active collection.
func NewIngestCmd() *cobra.Command {
	var urls []string
	var files []string
	var text string
	var label string
	var kind string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the vector store",
		Long: `Fetch or read documents, split them into overlapping chunks, embed the
chunks and store them in the active collection.

Formats are detected from the Content-Type or file extension: plain text,
HTML/XHTML and PDF. Inline --text is plain text unless --kind says otherwise.
Re-ingesting a source replaces its chunks.

Examples:
  ragchat ingest --url https://go.dev/doc/effective_go
  ragchat ingest --file handbook.pdf --file notes.md
  ragchat ingest --text "The office opens at 9am." --source office-hours`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if len(urls) == 0 && len(files) == 0 && text == "" {
				return fmt.Errorf("ingest: provide at least one --url, --file or --text")
			}

			var sources []source.Source
			for _, f := range files {
				src, err := source.FromFile(f)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				sources = append(sources, src)
			}
			if text != "" {
				if label == "" {
					return fmt.Errorf("ingest: --source is required with --text")
				}
				k, err := source.ParseKind(kind)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				src, err := source.New(k, label, []byte(text))
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				sources = append(sources, src)
			}

			a, err := buildApp(ctx, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, u := range urls {
				src, err := source.FetchURL(ctx, nil, u)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				sources = append(sources, src)
			}

			out := cmd.OutOrStdout()
			var failed []error
			for _, src := range sources {
				res, err := a.orch.Ingest(ctx, src)
				switch {
				case err == nil:
					fmt.Fprintf(out, "%s: %d chunks indexed\n", src.Name(), res.Written)
				case errors.Is(err, rag.ErrPartialIngest):
					fmt.Fprintf(out, "%s: %s\n", src.Name(), rag.UserMessage(err))
				default:
					fmt.Fprintf(os.Stderr, "%s: %v\n", src.Name(), userError(log, err))
					failed = append(failed, err)
				}
			}

			log.Info("ingestion complete",
				slog.Int("sources", len(sources)),
				slog.Int("failed", len(failed)),
			)
			if len(failed) > 0 {
				return fmt.Errorf("ingest: %d of %d sources failed", len(failed), len(sources))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Document URL to ingest (repeatable)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Local file to ingest (repeatable)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Inline document text")
	cmd.Flags().StringVar(&label, "source", "", "Source label for --text")
	cmd.Flags().StringVar(&kind, "kind", "text", "Format of --text: text, markup or pdf")

	return cmd
}
