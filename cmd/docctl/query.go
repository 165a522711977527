package main

import (
	"bufio"
	"fmt"
	"strings"

	"document-portal/internal/app"

	"github.com/spf13/cobra"
)

var queryFlags struct {
	session string
	k       int
	shared  bool
}

var queryCmd = &cobra.Command{
	Use:   "query [QUESTION]",
	Short: "Ask a question against an index; without an argument, read one question per line from stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scoped := !queryFlags.shared
		sessionID := queryFlags.session
		if scoped && sessionID == "" {
			return fmt.Errorf("--session is required unless --shared is set")
		}
		if sessionID == "" {
			sessionID = "default"
		}

		return withServices(cmd.Context(), func(svc *app.Services) error {
			_, indexDir := svc.Ingestor.SessionDirs(sessionID, &scoped)
			if err := svc.Engine.InitializeFromDir(cmd.Context(), sessionID, indexDir, queryFlags.k); err != nil {
				return err
			}

			ask := func(question string) error {
				answer, err := svc.Engine.Query(cmd.Context(), sessionID, question)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer)
				return nil
			}

			if len(args) == 1 {
				return ask(args[0])
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if err := ask(question); err != nil {
					return err
				}
			}
			return scanner.Err()
		})
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryFlags.session, "session", "s", "", "session id of the index")
	queryCmd.Flags().IntVarP(&queryFlags.k, "k", "k", 0, "number of chunks to retrieve (default from RETRIEVER_K)")
	queryCmd.Flags().BoolVar(&queryFlags.shared, "shared", false, "query the shared index")
	rootCmd.AddCommand(queryCmd)
}
