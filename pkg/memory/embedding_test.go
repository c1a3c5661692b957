package memory

import (
	"context"
)

// mockEmbeddingProvider generates deterministic embeddings for tests.
type mockEmbeddingProvider struct {
	dimension int
}

func newMockEmbeddingProvider(dimension int) *mockEmbeddingProvider {
	return &mockEmbeddingProvider{dimension: dimension}
}

func (p *mockEmbeddingProvider) Dimension() int {
	return p.dimension
}

func (p *mockEmbeddingProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	// Deterministic embedding from a simple text hash
	embedding := make([]float32, p.dimension)
	hash := 0
	for _, c := range text {
		hash = hash*31 + int(c)
	}
	for i := 0; i < p.dimension; i++ {
		embedding[i] = float32((hash+i)%100) / 100.0
	}
	return embedding, nil
}
