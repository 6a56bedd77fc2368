package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/orchestrator"
)

// NewAskCmd constructs the `ragchat ask` command, which answers one question
// and prints the response with its sources.
func NewAskCmd() *cobra.Command {
	var session string
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the ingested documents",
		Long: `Ask one question. The closest chunks are retrieved from the active
collection and sent to the chat model with the conversation so far.

Pass --session to continue a conversation. With SESSION_BACKEND=sqlite the
history survives between invocations.

Examples:
  ragchat ask "what does the onboarding guide say about laptops?"
  ragchat ask --session work "and what about monitors?"
  RAG_TOP_K=0 ragchat ask "tell me a joke"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			a, err := buildApp(ctx, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.orch.Ask(ctx, orchestrator.AskRequest{
				SessionID: session,
				Message:   strings.Join(args, " "),
			})
			if err != nil {
				return userError(log, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Response)
			if showSources {
				printSources(out, ans.Sources)
			}
			if session == "" {
				cmd.PrintErrf("session: %s\n", ans.SessionID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Conversation id to continue")
	cmd.Flags().BoolVar(&showSources, "sources", true, "Print the retrieved sources")

	return cmd
}
