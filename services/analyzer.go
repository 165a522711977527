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

// DocumentAnalyzer asks the model for a document's metadata and summary.
type DocumentAnalyzer struct {
	generator ai.Generator
	prompts   *ai.PromptRegistry
}

func NewDocumentAnalyzer(generator ai.Generator, prompts *ai.PromptRegistry) *DocumentAnalyzer {
	return &DocumentAnalyzer{generator: generator, prompts: prompts}
}

func (a *DocumentAnalyzer) Analyze(ctx context.Context, text string) (*models.DocumentMetadata, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("analyze document: no text: %w", models.ErrUnsupportedInput)
	}

	prompt, err := a.prompts.Render(ai.PromptDocumentAnalysis, map[string]any{"DocumentText": text})
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}
	reply, err := a.generator.Generate(ctx, []models.ChatMessage{models.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}

	var meta models.DocumentMetadata
	if err := json.Unmarshal([]byte(extractJSON(reply, '{', '}')), &meta); err != nil {
		return nil, fmt.Errorf("analyze document: reply is not a metadata object: %w: %w", models.ErrProvider, err)
	}
	if meta.Summary == nil {
		meta.Summary = []string{}
	}

	logger.Info("Metadata analysis performed", "title", meta.Title, "summary_points", len(meta.Summary))
	return &meta, nil
}

// DocumentText joins documents into one text, marking each page.
func DocumentText(docs []models.Document) string {
	var sb strings.Builder
	for i, d := range docs {
		page := d.Page
		if page == 0 {
			page = i + 1
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n%s\n", page, strings.TrimSpace(d.Text))
	}
	return strings.TrimSpace(sb.String())
}

// extractJSON returns the outermost opening...closing span of a model reply,
// dropping markdown code fences and any prose around it.
func extractJSON(reply string, opening, closing byte) string {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, opening)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
