package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"document-portal/internal/logger"
	"document-portal/models"
	"document-portal/services"
	"document-portal/utils"

	"github.com/gin-gonic/gin"
)

type DocumentDeps struct {
	Indexer    Indexer
	Analyzer   Analyzer
	Comparator Comparator
	// Reports is optional.
	Reports ReportStore
}

func SetupDocumentRoutes(router *gin.Engine, deps DocumentDeps) {
	router.POST("/analyze", handleAnalyze(deps))
	router.POST("/compare", handleCompare(deps))
}

func handleAnalyze(deps DocumentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A document is required in the 'file' field", gin.H{"error": err.Error()})
			return
		}

		sessionID, docs, err := readUploads(c.Request.Context(), deps.Indexer, fh.Filename, services.UploadFromHeader(fh))
		if err != nil {
			utils.RespondWithServiceError(c, "Analysis failed", err)
			return
		}

		meta, err := deps.Analyzer.Analyze(c.Request.Context(), services.DocumentText(docs[0]))
		if err != nil {
			logger.Error("Document analysis failed", "session_id", sessionID, "file", fh.Filename, "error", err)
			utils.RespondWithServiceError(c, "Analysis failed", err)
			return
		}

		saveReport(c.Request.Context(), deps.Reports, &models.Report{
			Kind:      models.ReportKindAnalysis,
			SessionID: sessionID,
			Files:     []string{fh.Filename},
			Metadata:  meta,
		})
		c.JSON(http.StatusOK, meta)
	}
}

func handleCompare(deps DocumentDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		reference, refErr := c.FormFile("reference")
		actual, actErr := c.FormFile("actual")
		if err := errors.Join(refErr, actErr); err != nil {
			utils.RespondWithBadRequest(c, "Both 'reference' and 'actual' documents are required", gin.H{"error": err.Error()})
			return
		}

		sessionID, docs, err := readUploads(c.Request.Context(), deps.Indexer, reference.Filename,
			services.UploadFromHeader(reference), services.UploadFromHeader(actual))
		if err != nil {
			utils.RespondWithServiceError(c, "Comparison failed", err)
			return
		}

		changes, err := deps.Comparator.Compare(c.Request.Context(), services.CombineDocuments(docs[0], docs[1]))
		if err != nil {
			logger.Error("Document comparison failed", "session_id", sessionID, "error", err)
			utils.RespondWithServiceError(c, "Comparison failed", err)
			return
		}

		saveReport(c.Request.Context(), deps.Reports, &models.Report{
			Kind:      models.ReportKindComparison,
			SessionID: sessionID,
			Files:     []string{reference.Filename, actual.Filename},
			Changes:   changes,
		})

		if c.Query("format") == "xlsx" {
			buf, err := services.ComparisonWorkbook(changes)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to export comparison", gin.H{"error": err.Error()})
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="comparison_%s.xlsx"`, sessionID))
			c.Data(http.StatusOK, services.XLSXContentType, buf.Bytes())
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"rows":       changes,
			"session_id": sessionID,
		})
	}
}

// readUploads saves the files into a fresh session directory and reads each
// one back. Every file must be of a supported type.
func readUploads(ctx context.Context, indexer Indexer, name string, files ...services.Upload) (string, [][]models.Document, error) {
	sessionID, err := indexer.ResolveSession("")
	if err != nil {
		return "", nil, err
	}
	paths, skipped, err := indexer.SaveUploads(sessionID, files, boolPtr(true))
	if err != nil {
		return "", nil, err
	}
	if len(skipped) > 0 {
		return "", nil, fmt.Errorf("read %s: %v: %w", name, skipped, models.ErrUnsupportedInput)
	}

	docs := make([][]models.Document, 0, len(paths))
	for _, path := range paths {
		d, err := services.ReadDocument(ctx, path)
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		docs = append(docs, d)
	}
	return sessionID, docs, nil
}

func saveReport(ctx context.Context, store ReportStore, report *models.Report) {
	if store == nil {
		return
	}
	ctx, cancel := utils.WithTimeout(context.WithoutCancel(ctx))
	defer cancel()

	start := time.Now()
	if err := store.Save(ctx, report); err != nil {
		logger.Warn("Failed to save report", "kind", report.Kind, "session_id", report.SessionID, "error", err)
		return
	}
	logger.Debug("Report saved", "kind", report.Kind, "id", report.ID.Hex(), "duration", time.Since(start))
}
