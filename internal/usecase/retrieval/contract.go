package retrieval

import (
	"context"
	"time"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/filter"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher queries the vector index for nearest neighbors.
type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int, filters filter.Set) ([]candidate.Candidate, error)
}

// KeywordSearcher queries the keyword shopping search.
type KeywordSearcher interface {
	Search(ctx context.Context, keywords []string, limit int, filters filter.Set) ([]candidate.Candidate, error)
}

// CacheStore is the consumer interface for the result cache (ISP).
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
