package ai

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"document-portal/models"

	"gopkg.in/yaml.v3"
)

// PromptKind identifies a prompt template. Lookups are exact.
type PromptKind string

const (
	PromptDocumentAnalysis      PromptKind = "document_analysis"
	PromptDocumentComparison    PromptKind = "document_comparison"
	PromptContextualizeQuestion PromptKind = "contextualize_question"
	PromptContextQA             PromptKind = "context_qa"
)

var promptKinds = []PromptKind{
	PromptDocumentAnalysis,
	PromptDocumentComparison,
	PromptContextualizeQuestion,
	PromptContextQA,
}

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptRegistry maps every PromptKind to a parsed template.
type PromptRegistry struct {
	templates map[PromptKind]*template.Template
}

// DefaultPrompts loads the registry compiled into the binary.
func DefaultPrompts() (*PromptRegistry, error) {
	return LoadPrompts(defaultPrompts)
}

// LoadPrompts parses a YAML mapping of prompt kind to template text. Every
// kind must be present and no other key is accepted.
func LoadPrompts(data []byte) (*PromptRegistry, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts: %w: %w", models.ErrConfiguration, err)
	}

	known := make(map[string]bool, len(promptKinds))
	for _, k := range promptKinds {
		known[string(k)] = true
	}
	var unknown []string
	for key := range raw {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown prompt keys %v: %w", unknown, models.ErrConfiguration)
	}

	reg := &PromptRegistry{templates: make(map[PromptKind]*template.Template, len(promptKinds))}
	for _, kind := range promptKinds {
		text, ok := raw[string(kind)]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt %q missing: %w", kind, models.ErrConfiguration)
		}
		tmpl, err := template.New(string(kind)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w: %w", kind, models.ErrConfiguration, err)
		}
		reg.templates[kind] = tmpl
	}
	return reg, nil
}

// Render executes the template for kind with data.
func (r *PromptRegistry) Render(kind PromptKind, data any) (string, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", fmt.Errorf("prompt %q not registered: %w", kind, models.ErrConfiguration)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", kind, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
