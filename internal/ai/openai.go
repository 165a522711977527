package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"document-portal/models"
)

var (
	_ Generator = (*OpenAIChat)(nil)
	_ Embedder  = (*OpenAIEmbedder)(nil)
)

const defaultHTTPTimeout = 60 * time.Second

// StatusError is returned for non-2xx responses so the retry policy can
// tell throttling and server faults from bad requests.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %s (code: %d)", e.Message, e.Code)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// openAIClient speaks the OpenAI-compatible REST API (OpenAI, Groq).
type openAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newOpenAIClient(apiKey, baseURL string, timeout time.Duration) openAIClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return openAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c openAIClient) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorBody
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// OpenAIChat is a Generator over /chat/completions.
type OpenAIChat struct {
	openAIClient
	model       string
	temperature float32
	maxTokens   int
	onTokens    func(model string, tokens int64)
}

func NewOpenAIChat(cfg GeneratorConfig) *OpenAIChat {
	return &OpenAIChat{
		openAIClient: newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxOutputTokens,
		onTokens:     cfg.OnTokens,
	}
}

func (c *OpenAIChat) Model() string {
	return c.model
}

func (c *OpenAIChat) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	if c.onTokens != nil && resp.Usage.TotalTokens > 0 {
		c.onTokens(c.model, resp.Usage.TotalTokens)
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIEmbedder is an Embedder over /embeddings.
type OpenAIEmbedder struct {
	openAIClient
	model string
}

func NewOpenAIEmbedder(cfg EmbedderConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		openAIClient: newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:        cfg.Model,
	}
}

func (e *OpenAIEmbedder) Model() string {
	return e.model
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	if err := e.post(ctx, "/embeddings", embeddingRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
