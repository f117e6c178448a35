package chi

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	chimux "github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	chatuc "github.com/infinitum-cloud/infinitum/internal/usecase/chat"
	"github.com/infinitum-cloud/infinitum/internal/usecase/health"
	packagesuc "github.com/infinitum-cloud/infinitum/internal/usecase/packages"
)

const testSecret = "test-secret"

// --- Mocks ---

type mockChat struct {
	resp     chatuc.Response
	err      error
	lastUser string
	lastOpts chatuc.Options
	calls    int
}

func (m *mockChat) Ask(_ context.Context, userID, _ string, opts chatuc.Options) (chatuc.Response, error) {
	m.calls++
	m.lastUser = userID
	m.lastOpts = opts
	if m.err != nil {
		return chatuc.Response{}, m.err
	}
	resp := m.resp
	if resp.ConversationID == "" {
		resp.ConversationID = "conv-1"
	}
	return resp, nil
}

func (m *mockChat) Stream(_ context.Context, userID, _ string, opts chatuc.Options, sink chatuc.Sink) (chatuc.Response, error) {
	m.calls++
	m.lastUser = userID
	m.lastOpts = opts
	if m.err != nil {
		return chatuc.Response{}, m.err
	}
	for _, stage := range []chatuc.Stage{chatuc.StageReceived, chatuc.StageIntentExtracted, chatuc.StageRetrieving, chatuc.StageCurating} {
		if err := sink.Status(stage); err != nil {
			return chatuc.Response{}, err
		}
	}
	if err := sink.MessageDelta("Here "); err != nil {
		return chatuc.Response{}, err
	}
	if err := sink.MessageDelta("you go."); err != nil {
		return chatuc.Response{}, err
	}
	resp := m.resp
	if resp.ConversationID == "" {
		resp.ConversationID = "conv-1"
	}
	if err := sink.Products(resp.Results); err != nil {
		return chatuc.Response{}, err
	}
	if err := sink.Complete(resp); err != nil {
		return chatuc.Response{}, err
	}
	return resp, nil
}

type mockHistory struct {
	convs      []conversation.Conversation
	listErr    error
	deleted    int
	delErr     error
	deletedOne string
}

func (m *mockHistory) List(_ context.Context, _ string, _ int) ([]conversation.Conversation, error) {
	return m.convs, m.listErr
}

func (m *mockHistory) Delete(_ context.Context, _ string) (int, error) {
	return m.deleted, m.delErr
}

func (m *mockHistory) DeleteConversation(_ context.Context, _ string, convID string) error {
	m.deletedOne = convID
	return m.delErr
}

type mockPackages struct {
	created packagesuc.Package
	got     packagesuc.Package
	err     error
}

func (m *mockPackages) Create(_ context.Context, pkg packagesuc.Package) (packagesuc.Package, error) {
	if m.err != nil {
		return packagesuc.Package{}, m.err
	}
	if m.created.SessionID != "" {
		return m.created, nil
	}
	pkg.SessionID = "sess-1"
	pkg.CreatedAt = time.Now()
	return pkg, nil
}

func (m *mockPackages) Get(_ context.Context, _ string) (packagesuc.Package, error) {
	return m.got, m.err
}

type mockHealth struct {
	report health.Report
}

func (m *mockHealth) Check(_ context.Context) health.Report { return m.report }

// --- Helpers ---

type testServer struct {
	*httptest.Server
	chat     *mockChat
	history  *mockHistory
	packages *mockPackages
	health   *mockHealth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	chat := &mockChat{resp: sampleResponse()}
	history := &mockHistory{}
	packages := &mockPackages{}
	healthy := &mockHealth{report: health.Report{
		Status: health.Healthy,
		Checks: map[string]health.CheckResult{"database": health.CheckOK},
	}}

	srv := NewServer(
		chat, history, packages, healthy,
		NewAuthenticator(testSecret, zap.NewNop()),
		nil,
		zap.NewNop(),
	).WithSearchDefaults(chatuc.Options{
		VectorK:        50,
		KeywordK:       50,
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
	})
	r := chimux.NewRouter()
	srv.Routes(r)

	ts := &testServer{
		Server:   httptest.NewServer(r),
		chat:     chat,
		history:  history,
		packages: packages,
		health:   healthy,
	}
	t.Cleanup(ts.Close)
	return ts
}

func sampleResponse() chatuc.Response {
	items := []candidate.Candidate{
		candidate.New("p1", "Acme Runner", "light running shoe", map[string]string{"brand": "acme", "price": "89.99"}, 0.91, candidate.Both, 0),
		candidate.New("p2", "Trail Blazer", "grippy trail shoe", nil, 0.74, candidate.Vector, 1),
	}
	return chatuc.Response{
		ConversationID: "conv-1",
		Message:        "Here you go.",
		Results:        resultset.New(items, resultset.Hybrid, false),
		Suggestions:    []string{"Sort these by price"},
		Metadata: chatuc.Metadata{
			SearchMethod:   string(resultset.Hybrid),
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
			StepsCompleted: []chatuc.Stage{chatuc.StageReceived, chatuc.StageIntentExtracted, chatuc.StageRetrieving, chatuc.StageCurating, chatuc.StageResponded},
			ProcessingTime: 1200 * time.Millisecond,
		},
	}
}

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func bearer(token string) string { return fmt.Sprintf("Bearer %s", token) }
