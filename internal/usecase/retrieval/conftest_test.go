package retrieval

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/db"
	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/filter"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

type mockVector struct {
	cands []candidate.Candidate
	err   error
	calls int
}

func (m *mockVector) Query(_ context.Context, _ []float32, _ int, _ filter.Set) ([]candidate.Candidate, error) {
	m.calls++
	return m.cands, m.err
}

type mockKeyword struct {
	cands []candidate.Candidate
	err   error
	calls int
}

func (m *mockKeyword) Search(_ context.Context, _ []string, _ int, _ filter.Set) ([]candidate.Candidate, error) {
	m.calls++
	return m.cands, m.err
}

type mockCacheStore struct {
	data map[string][]byte
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{data: make(map[string][]byte)}
}

func (m *mockCacheStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockCacheStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func newTestService(emb *mockEmbedder, vec *mockVector, kw *mockKeyword) *Service {
	return New(emb, vec, kw, nil, 0, zap.NewNop())
}

func mustRequest(t *testing.T, limit, vectorK, keywordK int, threshold float64) *request.Request {
	t.Helper()
	req, err := request.New("wireless headphones", nil, nil, limit, vectorK, keywordK, 0, 0, threshold)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

func vecCand(id string, score float64, rank int) candidate.Candidate {
	return candidate.New(id, "title "+id, "", nil, score, candidate.Vector, rank)
}

func kwCand(id string, rank int) candidate.Candidate {
	return candidate.New(id, "title "+id, "", nil, 0, candidate.Keyword, rank)
}
