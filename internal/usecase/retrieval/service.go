// Package retrieval merges vector-similarity and keyword-search candidates
// into one ranked result set, degrading instead of failing when sources
// are down.
package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	"github.com/infinitum-cloud/infinitum/internal/metrics"
)

// Service orchestrates hybrid retrieval.
type Service struct {
	embed   Embedder
	vector  VectorSearcher
	keyword KeywordSearcher
	cache   *resultCache
	log     *zap.Logger
}

// New creates a retrieval service. cacheStore may be nil to disable result
// caching.
func New(embed Embedder, vector VectorSearcher, keyword KeywordSearcher, cacheStore CacheStore, cacheTTL time.Duration, log *zap.Logger) *Service {
	s := &Service{
		embed:   embed,
		vector:  vector,
		keyword: keyword,
		log:     log,
	}
	if cacheStore != nil {
		if cacheTTL <= 0 {
			cacheTTL = DefaultResultTTL
		}
		s.cache = &resultCache{store: cacheStore, ttl: cacheTTL, logger: log}
	}
	return s
}

// Retrieve produces a ranked result set for the request.
//
// Source failures never fail the call: a dead embedding provider skips
// vector retrieval, a dead keyword provider skips keyword retrieval, and
// only when every source is down does the result carry the "unavailable"
// method marker with an empty item list.
func (s *Service) Retrieve(ctx context.Context, req *request.Request) (resultset.ResultSet, error) {
	if req.Limit() == 0 {
		return resultset.Empty(resultset.Hybrid, false), nil
	}

	var key string
	if s.cache != nil {
		key = cacheKey(req)
		if rs, ok := s.cache.get(ctx, key); ok {
			metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
			metrics.SearchMethodTotal.WithLabelValues(string(resultset.Cached)).Inc()
			return rs.WithMethod(resultset.Cached), nil
		}
		metrics.ResultCacheTotal.WithLabelValues("miss").Inc()
	}

	vecOut, kwOut := s.querySources(ctx, req)

	rs := s.assemble(req, vecOut, kwOut)

	metrics.SearchMethodTotal.WithLabelValues(string(rs.Method())).Inc()

	// degraded sets are not cached: a later call may see recovered sources
	if s.cache != nil && !rs.Degraded() {
		s.cache.put(ctx, key, rs)
	}
	return rs, nil
}

// querySources runs vector and keyword retrieval concurrently. Both goroutines
// always return nil; failures become degraded outcomes.
func (s *Service) querySources(ctx context.Context, req *request.Request) (vec, kw domain.Outcome[[]candidate.Candidate]) {
	log := s.log

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		emb, err := s.embed.Embed(gctx, req.Query())
		if err != nil {
			log.Warn("Embedding unavailable, skipping vector retrieval", zap.Error(err))
			vec = domain.Degraded[[]candidate.Candidate]("embedding_unavailable", err)
			return nil
		}
		cands, err := s.vector.Query(gctx, emb.Embedding, req.VectorK(), req.Filters())
		if err != nil {
			log.Warn("Vector index unavailable", zap.Error(err))
			vec = domain.Degraded[[]candidate.Candidate]("index_unavailable", err)
			return nil
		}
		vec = domain.Ok(cands)
		return nil
	})

	g.Go(func() error {
		cands, err := s.keyword.Search(gctx, req.Keywords(), req.KeywordK(), req.Filters())
		if err != nil {
			log.Warn("Keyword search unavailable", zap.Error(err))
			kw = domain.Degraded[[]candidate.Candidate]("keyword_unavailable", err)
			return nil
		}
		kw = domain.Ok(cands)
		return nil
	})

	_ = g.Wait()
	return vec, kw
}

// assemble merges the source outcomes and tags the set with the method that
// actually produced it.
func (s *Service) assemble(req *request.Request, vec, kw domain.Outcome[[]candidate.Candidate]) resultset.ResultSet {
	switch {
	case vec.IsDegraded() && kw.IsDegraded():
		return resultset.Empty(resultset.Unavailable, true)
	case vec.IsDegraded():
		items := merge(nil, kw.Value(), req)
		return resultset.New(items, resultset.KeywordOnly, true)
	case kw.IsDegraded():
		items := merge(vec.Value(), nil, req)
		return resultset.New(items, resultset.VectorOnly, true)
	default:
		items := merge(vec.Value(), kw.Value(), req)
		return resultset.New(items, resultset.Hybrid, false)
	}
}
