package main

import (
	"fmt"

	"document-portal/services"

	"github.com/spf13/cobra"
)

var cleanKeep int

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all but the newest session directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keep := cfg.KeepLatestSessions
		if cmd.Flags().Changed("keep") {
			keep = cleanKeep
		}

		cleaner := services.SessionCleaner{Dirs: []string{cfg.UploadDir, cfg.IndexDir}, Keep: keep}
		removed, err := cleaner.Clean()
		for _, path := range removed {
			fmt.Fprintln(cmd.OutOrStdout(), "removed", path)
		}
		return err
	},
}

func init() {
	cleanCmd.Flags().IntVar(&cleanKeep, "keep", services.DefaultKeepSessions, "number of newest sessions to keep")
	rootCmd.AddCommand(cleanCmd)
}
