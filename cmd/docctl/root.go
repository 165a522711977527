package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"document-portal/internal/app"
	"document-portal/internal/config"
	"document-portal/internal/logger"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "docctl",
	Short:         "Index, query, analyze and compare documents from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger.SetOutput(cmd.ErrOrStderr(), level)

		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// withServices builds providers and services for one command run.
func withServices(ctx context.Context, fn func(svc *app.Services) error) error {
	providers, err := app.NewProviders(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer providers.Close()

	cliCfg := *cfg
	cliCfg.HistoryBackend = config.HistoryBackendMemory
	svc, err := app.NewServices(&cliCfg, providers, nil, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(svc)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
