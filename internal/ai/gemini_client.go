package ai

import (
	"context"
	"fmt"
	"strings"

	"document-portal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

var _ Generator = (*GeminiClient)(nil)

// GeminiClient generates chat completions with the Gemini API.
type GeminiClient struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	onTokens        func(model string, tokens int64)
}

func NewGeminiClient(ctx context.Context, cfg GeneratorConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:          client,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
		onTokens:        cfg.OnTokens,
	}, nil
}

func (gc *GeminiClient) Model() string {
	return gc.model
}

// Generate maps system messages to the system instruction, earlier turns to
// chat history and sends the final message.
func (gc *GeminiClient) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.messages", len(messages)),
	)

	model := gc.client.GenerativeModel(gc.model)
	model.SetTemperature(gc.temperature)
	if gc.maxOutputTokens > 0 {
		model.SetMaxOutputTokens(gc.maxOutputTokens)
	}

	var system []string
	var turns []models.ChatMessage
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("gemini: no user message to send")
	}

	cs := model.StartChat()
	for _, m := range turns[:len(turns)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  geminiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
		return "", err
	}

	if resp.UsageMetadata != nil {
		tokens := int64(resp.UsageMetadata.TotalTokenCount)
		span.SetAttributes(attribute.Int64("gemini.actual_tokens", tokens))
		if gc.onTokens != nil {
			gc.onTokens(gc.model, tokens)
		}
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return responseText(resp), nil
}

func geminiRole(role string) string {
	if role == models.RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// first candidate only
		break
	}
	return sb.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
