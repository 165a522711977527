package main

import (
	"fmt"
	"os"

	"document-portal/internal/app"
	"document-portal/services"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Extract metadata and a summary from a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := services.ReadDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), func(svc *app.Services) error {
			meta, err := svc.Analyzer.Analyze(cmd.Context(), services.DocumentText(docs))
			if err != nil {
				return err
			}
			return printJSON(cmd, meta)
		})
	},
}

var compareXLSX string

var compareCmd = &cobra.Command{
	Use:   "compare REFERENCE ACTUAL",
	Short: "List the page-level differences between two documents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reference, err := services.ReadDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		actual, err := services.ReadDocument(cmd.Context(), args[1])
		if err != nil {
			return err
		}

		return withServices(cmd.Context(), func(svc *app.Services) error {
			changes, err := svc.Comparator.Compare(cmd.Context(), services.CombineDocuments(reference, actual))
			if err != nil {
				return err
			}
			if compareXLSX == "" {
				return printJSON(cmd, changes)
			}

			buf, err := services.ComparisonWorkbook(changes)
			if err != nil {
				return err
			}
			if err := os.WriteFile(compareXLSX, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s\n", len(changes), compareXLSX)
			return nil
		})
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareXLSX, "xlsx", "", "write the comparison to this XLSX file")
	rootCmd.AddCommand(analyzeCmd, compareCmd)
}
