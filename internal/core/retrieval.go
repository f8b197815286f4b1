package core

import (
	"context"
	"fmt"

	"github.com/tech-vaibhav/RAG-API/internal/index"
)

// DefaultRetrievalK is the number of passages retrieved per question.
const DefaultRetrievalK = 3

// RetrievalService answers queries with the top-k nearest passages from the
// vector index. Every call re-embeds the query; there is no caching.
type RetrievalService struct {
	embedder Embedder
	index    *index.Index
}

func NewRetrievalService(embedder Embedder, ix *index.Index) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		index:    ix,
	}
}

// Retrieve embeds the query and returns up to k passage texts, nearest
// first. Distances are internal ranking detail and are not returned.
// An index that has never been built yields index.ErrIndexEmpty.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultRetrievalK
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailure, err)
	}

	results, err := s.index.Search(queryVector, k)
	if err != nil {
		return nil, err
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Text
	}
	return passages, nil
}
