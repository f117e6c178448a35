package domain

import "context"

// EmbeddingDimensions is the fixed embedding vector length.
const EmbeddingDimensions = 768

// EmbeddingResult carries the vector and token usage of an embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is optionally implemented by providers that can be probed.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
