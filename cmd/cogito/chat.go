package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/longregen/cogito/internal/pipeline"
)

// chatCmd runs the pipeline interactively from the terminal.
func chatCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat through the pipeline",
		Long: `Run turns interactively. Each line goes through planning, the
validation wall, sandboxed execution, and verification. When an action
needs confirmation, answer "yes" to proceed or say anything else to drop
it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			st, err := buildStack(ctx, logger, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Printf("Chatting as %s. Type 'exit' or 'quit' to leave.\n", userID)
			fmt.Println(strings.Repeat("-", 60))

			scanner := bufio.NewScanner(os.Stdin)
			pendingToken := ""

			for {
				fmt.Print("You: ")
				if !scanner.Scan() {
					break
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "exit" || input == "quit" {
					break
				}

				req := pipeline.TurnRequest{UserID: userID}
				if pendingToken != "" && isAffirmative(input) {
					req.ConfirmationToken = pendingToken
				} else {
					req.Utterance = input
				}
				pendingToken = ""

				out, err := st.orch.HandleTurn(ctx, req)
				if err != nil {
					fmt.Printf("Error: %v\n\n", err)
					continue
				}

				fmt.Printf("Cogito: %s\n\n", out.Reply)
				if out.NeedsConfirmation {
					pendingToken = out.ResultSummary
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "default_user", "user ID for the session")
	return cmd
}

func isAffirmative(input string) bool {
	switch strings.ToLower(input) {
	case "yes", "y", "yes please", "confirm", "go ahead", "do it":
		return true
	}
	return false
}
