package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var _ Embedder = (*GeminiEmbedder)(nil)

// maxEmbedBatch is the Gemini limit on contents per BatchEmbedContents call.
const maxEmbedBatch = 100

// GeminiEmbedder embeds texts with a Google embedding model (text-embedding-004 by default).
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini embedding client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Model() string {
	return e.model
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("no embedding returned")
			}
			// genai SDK returns []float32 for Embedding.Values
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
