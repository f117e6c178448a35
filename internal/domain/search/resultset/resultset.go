// Package resultset holds the ranked, deduplicated retrieval outcome.
package resultset

import "github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"

// Method describes how a result set was produced.
type Method string

const (
	// Hybrid means both vector and keyword sources contributed.
	Hybrid Method = "hybrid"
	// VectorOnly means keyword search was skipped or failed.
	VectorOnly Method = "vector_only"
	// KeywordOnly means vector retrieval was skipped or failed.
	KeywordOnly Method = "keyword_only"
	// Cached means the set was served from the result cache.
	Cached Method = "cached"
	// Unavailable means every retrieval source was down.
	Unavailable Method = "unavailable"
)

// ResultSet is an ordered sequence of candidates, unique by identifier,
// non-increasing in combined score.
type ResultSet struct {
	items    []candidate.Candidate
	method   Method
	degraded bool
}

// New creates a result set. Callers are responsible for ordering and
// deduplication (the merge step enforces both).
func New(items []candidate.Candidate, method Method, degraded bool) ResultSet {
	return ResultSet{items: items, method: method, degraded: degraded}
}

// Empty creates an empty set with the given method marker.
func Empty(method Method, degraded bool) ResultSet {
	return ResultSet{method: method, degraded: degraded}
}

// Items returns the ranked candidates.
func (rs ResultSet) Items() []candidate.Candidate { return rs.items }

// Len returns the number of candidates.
func (rs ResultSet) Len() int { return len(rs.items) }

// Method returns the search method marker.
func (rs ResultSet) Method() Method { return rs.method }

// Degraded reports whether at least one source failed soft.
func (rs ResultSet) Degraded() bool { return rs.degraded }

// WithMethod returns a copy with a replaced method marker.
func (rs ResultSet) WithMethod(m Method) ResultSet {
	rs.method = m
	return rs
}
