package retrieval

import (
	"sort"

	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
)

// merge fuses vector and keyword candidates into one ranked, deduplicated
// list.
//
// Scoring: an item in both sources gets
//
//	semantic_weight*vector_score + keyword_weight*(1 - keyword_rank/N_k)
//
// where rank 0 normalizes to 1.0. Single-source items use their own term
// with the other treated as zero. Ties break by provenance (both > vector
// > keyword), then by source rank. The threshold filter runs before the
// limit truncation.
func merge(vec, kw []candidate.Candidate, req *request.Request) []candidate.Candidate {
	sw := req.SemanticWeight()
	kwWeight := req.KeywordWeight()
	nk := req.KeywordK()

	kwByID := make(map[string]candidate.Candidate, len(kw))
	for _, c := range kw {
		if _, seen := kwByID[c.ID()]; !seen {
			kwByID[c.ID()] = c
		}
	}

	merged := make([]candidate.Candidate, 0, len(vec)+len(kw))
	seen := make(map[string]struct{}, len(vec)+len(kw))

	for _, v := range vec {
		if _, dup := seen[v.ID()]; dup {
			continue
		}
		seen[v.ID()] = struct{}{}

		if k, ok := kwByID[v.ID()]; ok {
			score := sw*v.Score() + kwWeight*normalizedRank(k.KeywordRank(), nk)
			merged = append(merged, candidate.Merged(v, k, score))
			continue
		}
		merged = append(merged, v.WithScore(sw*v.Score()))
	}

	for _, k := range kw {
		if _, dup := seen[k.ID()]; dup {
			continue
		}
		seen[k.ID()] = struct{}{}
		merged = append(merged, k.WithScore(kwWeight*normalizedRank(k.KeywordRank(), nk)))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if a.Provenance() != b.Provenance() {
			return a.Provenance().Before(b.Provenance())
		}
		return a.SourceRank() < b.SourceRank()
	})

	if req.Threshold() > 0 {
		kept := merged[:0]
		for _, c := range merged {
			if c.Score() >= req.Threshold() {
				kept = append(kept, c)
			}
		}
		merged = kept
	}

	if len(merged) > req.Limit() {
		merged = merged[:req.Limit()]
	}
	return merged
}

// normalizedRank maps a zero-based keyword rank into (0, 1], rank 0 → 1.0.
func normalizedRank(rank, nk int) float64 {
	if rank < 0 {
		rank = 0
	}
	if nk <= 0 {
		return 1
	}
	return 1 - float64(rank)/float64(nk)
}
