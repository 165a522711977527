package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"document-portal/internal/ai"
	"document-portal/internal/logger"
	"document-portal/models"
)

const noChangesReply = "NO CHANGES IDENTIFIED"

// DocumentComparator asks the model for the page-level differences between
// a reference and an actual document.
type DocumentComparator struct {
	generator ai.Generator
	prompts   *ai.PromptRegistry
}

func NewDocumentComparator(generator ai.Generator, prompts *ai.PromptRegistry) *DocumentComparator {
	return &DocumentComparator{generator: generator, prompts: prompts}
}

// CombineDocuments lays both documents out page by page for the comparison prompt.
func CombineDocuments(reference, actual []models.Document) string {
	return "Reference Document:\n" + DocumentText(reference) + "\n\nActual Document:\n" + DocumentText(actual)
}

// Compare returns one row per page. A model reporting no changes yields an
// empty slice.
func (c *DocumentComparator) Compare(ctx context.Context, combined string) ([]models.PageChange, error) {
	prompt, err := c.prompts.Render(ai.PromptDocumentComparison, map[string]any{"CombinedDocuments": combined})
	if err != nil {
		return nil, fmt.Errorf("compare documents: %w", err)
	}
	reply, err := c.generator.Generate(ctx, []models.ChatMessage{models.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("compare documents: %w", err)
	}

	if strings.Trim(strings.TrimSpace(reply), `"'.`) == noChangesReply {
		return []models.PageChange{}, nil
	}

	var rows []struct {
		Page    any    `json:"page"`
		Changes string `json:"changes"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply, '[', ']')), &rows); err != nil {
		return nil, fmt.Errorf("compare documents: reply is not a list of page changes: %w: %w", models.ErrProvider, err)
	}

	changes := make([]models.PageChange, 0, len(rows))
	for _, r := range rows {
		page := ""
		if r.Page != nil {
			page = fmt.Sprint(r.Page)
		}
		changes = append(changes, models.PageChange{Page: page, Changes: r.Changes})
	}
	logger.Info("Document comparison completed", "rows", len(changes))
	return changes, nil
}
