// Package request holds the validated hybrid search request.
package request

import (
	"fmt"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/filter"
)

// Search parameter limits and defaults.
const (
	MaxQueryLength = 1000
	DefaultLimit   = 20
	MaxLimit       = 100
	// DefaultSourceK is how many candidates each source is asked for.
	DefaultSourceK = 50
	MaxSourceK     = 200

	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// Request is a validated hybrid search query.
type Request struct {
	query          string
	keywords       []string
	filters        filter.Set
	limit          int
	vectorK        int
	keywordK       int
	semanticWeight float64
	keywordWeight  float64
	threshold      float64
}

// New validates and normalizes search parameters.
// limit=0 is a valid short-circuit request; negative values are invalid.
// Zero weights mean "use defaults"; zero vectorK/keywordK likewise.
func New(
	query string,
	keywords []string,
	filters filter.Set,
	limit, vectorK, keywordK int,
	semanticWeight, keywordWeight, threshold float64,
) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidInput, MaxQueryLength)
	}
	if limit < 0 {
		return Request{}, fmt.Errorf("%w: limit must be non-negative, got %d", domain.ErrInvalidInput, limit)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if vectorK < 0 || keywordK < 0 {
		return Request{}, fmt.Errorf("%w: per-source k must be non-negative", domain.ErrInvalidInput)
	}
	if vectorK == 0 {
		vectorK = DefaultSourceK
	}
	if keywordK == 0 {
		keywordK = DefaultSourceK
	}
	if vectorK > MaxSourceK {
		vectorK = MaxSourceK
	}
	if keywordK > MaxSourceK {
		keywordK = MaxSourceK
	}
	if semanticWeight < 0 || keywordWeight < 0 {
		return Request{}, fmt.Errorf("%w: weights must be non-negative", domain.ErrInvalidInput)
	}
	if semanticWeight == 0 && keywordWeight == 0 {
		semanticWeight = DefaultSemanticWeight
		keywordWeight = DefaultKeywordWeight
	}
	if threshold < 0 || threshold > 1 {
		return Request{}, fmt.Errorf("%w: similarity threshold must be between 0 and 1", domain.ErrInvalidInput)
	}
	if len(keywords) == 0 {
		keywords = []string{query}
	}

	return Request{
		query:          query,
		keywords:       keywords,
		filters:        filters,
		limit:          limit,
		vectorK:        vectorK,
		keywordK:       keywordK,
		semanticWeight: semanticWeight,
		keywordWeight:  keywordWeight,
		threshold:      threshold,
	}, nil
}

// Query returns the raw user query text.
func (r *Request) Query() string { return r.query }

// Keywords returns the extracted search keywords (falls back to the raw query).
func (r *Request) Keywords() []string { return r.keywords }

// Filters returns the metadata filters.
func (r *Request) Filters() filter.Set { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// VectorK returns the vector source candidate bound.
func (r *Request) VectorK() int { return r.vectorK }

// KeywordK returns the keyword source candidate bound.
func (r *Request) KeywordK() int { return r.keywordK }

// SemanticWeight returns the vector score weight.
func (r *Request) SemanticWeight() float64 { return r.semanticWeight }

// KeywordWeight returns the keyword rank weight.
func (r *Request) KeywordWeight() float64 { return r.keywordWeight }

// Threshold returns the minimum combined score to keep a result.
func (r *Request) Threshold() float64 { return r.threshold }
