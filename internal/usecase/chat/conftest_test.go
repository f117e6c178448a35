package chat

import (
	"context"

	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	"github.com/infinitum-cloud/infinitum/internal/usecase/curation"
	"github.com/infinitum-cloud/infinitum/internal/usecase/intent"
)

type mockIntents struct {
	result intent.Intent
	calls  int
}

func (m *mockIntents) Extract(_ context.Context, query string) intent.Intent {
	m.calls++
	if len(m.result.Keywords) == 0 {
		return intent.Intent{Keywords: []string{query}}
	}
	return m.result
}

type mockRetriever struct {
	rs    resultset.ResultSet
	err   error
	calls int
	req   *request.Request
}

func (m *mockRetriever) Retrieve(_ context.Context, req *request.Request) (resultset.ResultSet, error) {
	m.calls++
	m.req = req
	return m.rs, m.err
}

type mockCurator struct {
	cur   curation.Curation
	calls int
}

func (m *mockCurator) Curate(_ context.Context, _ string, _ resultset.ResultSet, _ string) curation.Curation {
	m.calls++
	return m.cur
}

func (m *mockCurator) CurateStream(_ context.Context, _ string, _ resultset.ResultSet, _ string, emit func(string) error) (curation.Curation, error) {
	m.calls++
	if err := emit(m.cur.Message); err != nil {
		return curation.Curation{}, err
	}
	return m.cur, nil
}

type mockHistory struct {
	saved []conversation.Conversation
	err   error
}

func (m *mockHistory) Save(_ context.Context, conv conversation.Conversation) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, conv)
	return nil
}

// recordingSink captures every sink callback in order.
type recordingSink struct {
	statuses []Stage
	deltas   []string
	products []resultset.ResultSet
	complete []Response
}

func (r *recordingSink) Status(s Stage) error {
	r.statuses = append(r.statuses, s)
	return nil
}

func (r *recordingSink) MessageDelta(d string) error {
	r.deltas = append(r.deltas, d)
	return nil
}

func (r *recordingSink) Products(rs resultset.ResultSet) error {
	r.products = append(r.products, rs)
	return nil
}

func (r *recordingSink) Complete(resp Response) error {
	r.complete = append(r.complete, resp)
	return nil
}

func hybridResults(ids ...string) resultset.ResultSet {
	items := make([]candidate.Candidate, 0, len(ids))
	for i, id := range ids {
		items = append(items, candidate.New(id, "title "+id, "", map[string]string{"brand": "acme"}, 0.9-float64(i)*0.1, candidate.Vector, i))
	}
	return resultset.New(items, resultset.Hybrid, false)
}
