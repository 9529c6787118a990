package services

import (
	"context"

	"rag-document-platform/models"
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkQuerier is the similarity-search slice of the vector store.
type ChunkQuerier interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]models.Chunk, error)
}

// VectorRetriever retrieves the topK most similar chunks for a question by
// embedding it and querying the vector store.
type VectorRetriever struct {
	embedder QueryEmbedder
	store    ChunkQuerier
	topK     int
}

func NewVectorRetriever(embedder QueryEmbedder, store ChunkQuerier, topK int) *VectorRetriever {
	if topK <= 0 {
		topK = 4
	}
	return &VectorRetriever{embedder: embedder, store: store, topK: topK}
}

func (vr *VectorRetriever) Retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	vector, err := vr.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return vr.store.Query(ctx, vector, vr.topK)
}
