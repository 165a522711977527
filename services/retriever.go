package services

import (
	"context"

	"document-portal/models"
)

const DefaultRetrieverK = 5

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error)
}

// IndexRetriever searches one index handle with a fixed k.
type IndexRetriever struct {
	handle *IndexHandle
	k      int
}

func NewRetriever(handle *IndexHandle, k int) *IndexRetriever {
	if k <= 0 {
		k = DefaultRetrieverK
	}
	return &IndexRetriever{handle: handle, k: k}
}

func (r *IndexRetriever) K() int {
	return r.k
}

func (r *IndexRetriever) Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error) {
	return r.handle.Search(ctx, query, r.k)
}
