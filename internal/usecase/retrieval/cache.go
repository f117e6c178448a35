package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/db"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
)

const resultCacheKeyPrefix = "result_cache:"

// DefaultResultTTL is how long merged result sets are cached. Short on
// purpose: source rankings drift, unlike embeddings.
const DefaultResultTTL = 5 * time.Minute

// resultCache round-trips ranked result sets through the key-value store.
type resultCache struct {
	store  CacheStore
	ttl    time.Duration
	logger *zap.Logger
}

type cachedItem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Attrs       map[string]string `json:"attrs,omitempty"`
	Score       float64           `json:"score"`
	Provenance  string            `json:"provenance"`
	VectorRank  int               `json:"vector_rank"`
	KeywordRank int               `json:"keyword_rank"`
}

type cachedSet struct {
	Items    []cachedItem `json:"items"`
	Method   string       `json:"method"`
	Degraded bool         `json:"degraded"`
}

// get returns a cached result set and whether the key was present.
func (c *resultCache) get(ctx context.Context, key string) (resultset.ResultSet, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached results", zap.String("key", key), zap.Error(err))
		}
		return resultset.ResultSet{}, false
	}

	var cs cachedSet
	if err := json.Unmarshal(data, &cs); err != nil {
		c.logger.Warn("Failed to parse cached results", zap.String("key", key), zap.Error(err))
		return resultset.ResultSet{}, false
	}

	items := make([]candidate.Candidate, 0, len(cs.Items))
	for _, it := range cs.Items {
		items = append(items, candidate.Restore(
			it.ID, it.Title, it.Description, it.Attrs,
			it.Score, candidate.Provenance(it.Provenance),
			it.VectorRank, it.KeywordRank,
		))
	}
	return resultset.New(items, resultset.Method(cs.Method), cs.Degraded), true
}

func (c *resultCache) put(ctx context.Context, key string, rs resultset.ResultSet) {
	cs := cachedSet{
		Items:    make([]cachedItem, 0, rs.Len()),
		Method:   string(rs.Method()),
		Degraded: rs.Degraded(),
	}
	for _, it := range rs.Items() {
		cs.Items = append(cs.Items, cachedItem{
			ID:          it.ID(),
			Title:       it.Title(),
			Description: it.Description(),
			Attrs:       it.Attrs(),
			Score:       it.Score(),
			Provenance:  string(it.Provenance()),
			VectorRank:  it.VectorRank(),
			KeywordRank: it.KeywordRank(),
		})
	}

	data, err := json.Marshal(cs)
	if err != nil {
		c.logger.Warn("Failed to marshal results for cache", zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache results", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey derives a stable key from every parameter that affects ranking.
func cacheKey(req *request.Request) string {
	var sb strings.Builder
	sb.WriteString(req.Query())
	sb.WriteByte('|')
	sb.WriteString(strings.Join(req.Keywords(), ","))
	fmt.Fprintf(&sb, "|%d|%d|%d|%g|%g|%g",
		req.Limit(), req.VectorK(), req.KeywordK(),
		req.SemanticWeight(), req.KeywordWeight(), req.Threshold(),
	)
	for _, f := range canonicalFilters(req) {
		sb.WriteByte('|')
		sb.WriteString(f)
	}

	h := sha256.Sum256([]byte(sb.String()))
	return resultCacheKeyPrefix + hex.EncodeToString(h[:])
}

func canonicalFilters(req *request.Request) []string {
	fs := req.Filters()
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Namespace()+
			":a="+strings.Join(f.Allow(), ",")+
			":d="+strings.Join(f.Deny(), ","))
	}
	sort.Strings(out)
	return out
}
