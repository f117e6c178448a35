package retrieval

import (
	"testing"

	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
)

func mergeRequest(t *testing.T, sw, kw float64, keywordK int) *request.Request {
	t.Helper()
	req, err := request.New("q", nil, nil, 20, 50, keywordK, sw, kw, 0)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

func TestMerge_TieBreakPrefersVectorOverKeyword(t *testing.T) {
	// weights chosen so a keyword rank-0 item ties a vector item exactly:
	// 0.5*1.0 == 0.5*1.0
	req := mergeRequest(t, 0.5, 0.5, 10)

	vec := []candidate.Candidate{vecCand("V", 1.0, 0)}
	kw := []candidate.Candidate{kwCand("K", 0)}

	got := merge(vec, kw, req)
	if len(got) != 2 {
		t.Fatalf("merge() returned %d items, want 2", len(got))
	}
	if got[0].ID() != "V" {
		t.Errorf("first item = %s, want V (vector wins score tie)", got[0].ID())
	}
}

func TestMerge_NormalizedKeywordRank(t *testing.T) {
	req := mergeRequest(t, 0.7, 0.3, 10)

	kw := []candidate.Candidate{
		kwCand("K0", 0),
		kwCand("K5", 5),
	}

	got := merge(nil, kw, req)
	if len(got) != 2 {
		t.Fatalf("merge() returned %d items, want 2", len(got))
	}
	// rank 0 → 0.3*1.0, rank 5 of 10 → 0.3*0.5
	if got[0].Score() != 0.3 {
		t.Errorf("K0 score = %f, want 0.3", got[0].Score())
	}
	if got[1].Score() != 0.15 {
		t.Errorf("K5 score = %f, want 0.15", got[1].Score())
	}
}

func TestMerge_DuplicateKeywordIDsKeepFirst(t *testing.T) {
	req := mergeRequest(t, 0.7, 0.3, 10)

	kw := []candidate.Candidate{
		kwCand("X", 0),
		kwCand("X", 3),
	}

	got := merge(nil, kw, req)
	if len(got) != 1 {
		t.Fatalf("merge() returned %d items, want 1", len(got))
	}
	if got[0].KeywordRank() != 0 {
		t.Errorf("kept rank = %d, want 0", got[0].KeywordRank())
	}
}

func TestMerge_MergedEntryWinsOverSingles(t *testing.T) {
	req := mergeRequest(t, 0.7, 0.3, 10)

	vec := []candidate.Candidate{vecCand("X", 0.5, 0)}
	kw := []candidate.Candidate{kwCand("X", 2)}

	got := merge(vec, kw, req)
	if len(got) != 1 {
		t.Fatalf("merge() returned %d items, want 1", len(got))
	}
	if got[0].Provenance() != candidate.Both {
		t.Errorf("provenance = %v, want both", got[0].Provenance())
	}
	// 0.7*0.5 + 0.3*(1 - 2/10)
	want := 0.35 + 0.3*0.8
	if diff := got[0].Score() - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %f, want %f", got[0].Score(), want)
	}
	if got[0].VectorRank() != 0 || got[0].KeywordRank() != 2 {
		t.Errorf("ranks = %d/%d, want 0/2", got[0].VectorRank(), got[0].KeywordRank())
	}
}
