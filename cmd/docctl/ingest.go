package main

import (
	"document-portal/internal/app"
	"document-portal/models"
	"document-portal/services"

	"github.com/spf13/cobra"
)

var ingestFlags struct {
	session      string
	chunkSize    int
	chunkOverlap int
	shared       bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Add documents to a session's index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := make([]services.Upload, 0, len(args))
		for _, path := range args {
			files = append(files, services.UploadFromPath(path))
		}
		scoped := !ingestFlags.shared

		return withServices(cmd.Context(), func(svc *app.Services) error {
			res, err := svc.Ingestor.Ingest(cmd.Context(), services.IngestRequest{
				SessionID:      ingestFlags.session,
				Files:          files,
				ChunkSize:      ingestFlags.chunkSize,
				ChunkOverlap:   ingestFlags.chunkOverlap,
				UseSessionDirs: &scoped,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, models.IndexResponse{
				SessionID:      res.SessionID,
				K:              res.Retriever.K(),
				UseSessionDirs: scoped,
				Added:          res.Added,
				Total:          res.Total,
				Skipped:        res.Skipped,
			})
		})
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFlags.session, "session", "s", "", "session id (generated when empty)")
	ingestCmd.Flags().IntVar(&ingestFlags.chunkSize, "chunk-size", 0, "chunk size in characters (default from CHUNK_SIZE)")
	ingestCmd.Flags().IntVar(&ingestFlags.chunkOverlap, "chunk-overlap", 0, "chunk overlap in characters")
	ingestCmd.Flags().BoolVar(&ingestFlags.shared, "shared", false, "use the shared index instead of a session directory")
	rootCmd.AddCommand(ingestCmd)
}
