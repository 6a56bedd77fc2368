package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/orchestrator"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// NewChatCmd constructs the `ragchat chat` command, an interactive
// multi-turn conversation on stdin.
func NewChatCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Read questions from stdin, one per line, and answer each in the same
conversation. Type /clear to forget the conversation and /quit to exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			a, err := buildApp(ctx, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if session == "" {
				session = uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s, /clear to reset, /quit to exit\n", session)

			in := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					fmt.Fprintln(out)
					return in.Err()
				}
				line := strings.TrimSpace(in.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/clear":
					if err := a.orch.ClearSession(ctx, session); err != nil {
						return err
					}
					fmt.Fprintln(out, "conversation cleared")
					continue
				}

				ans, err := a.orch.Ask(ctx, orchestrator.AskRequest{SessionID: session, Message: line})
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fmt.Fprintf(out, "error: %s (%s)\n", rag.UserMessage(err), rag.CodeOf(err))
					continue
				}
				fmt.Fprintln(out, ans.Response)
				printSources(out, ans.Sources)
			}
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Conversation id to continue (default: a new one)")

	return cmd
}
