package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
	"github.com/infinitum-cloud/infinitum/internal/usecase/health"
	packagesuc "github.com/infinitum-cloud/infinitum/internal/usecase/packages"
)

func TestChat_OK(t *testing.T) {
	ts := newTestServer(t)

	body := `{"message":"running shoes","limit":5,"semantic_weight":0.8,"keyword_weight":0.2}`
	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ConversationID != "conv-1" {
		t.Errorf("conversation_id = %q", out.ConversationID)
	}
	if out.Message.Type != "ai" || out.Message.Text != "Here you go." {
		t.Errorf("message = %+v", out.Message)
	}
	if len(out.Products) != 2 {
		t.Fatalf("products = %d, want 2", len(out.Products))
	}
	if out.Products[0].ID != "p1" || out.Products[0].Source != "both" {
		t.Errorf("first product = %+v", out.Products[0])
	}
	if out.SearchMetadata.SearchMethod != "hybrid" {
		t.Errorf("search_method = %q", out.SearchMetadata.SearchMethod)
	}
	if out.SearchMetadata.ProcessingTimeSeconds != 1.2 {
		t.Errorf("processing_time_seconds = %v", out.SearchMetadata.ProcessingTimeSeconds)
	}

	if ts.chat.lastOpts.Limit != 5 || ts.chat.lastOpts.SemanticWeight != 0.8 {
		t.Errorf("options = %+v", ts.chat.lastOpts)
	}
	if ts.chat.lastUser != "" {
		t.Errorf("guest request carried user id %q", ts.chat.lastUser)
	}
}

func TestChat_ServerDefaultsApplied(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	resp.Body.Close()

	if ts.chat.lastOpts.SemanticWeight != 0.7 || ts.chat.lastOpts.KeywordWeight != 0.3 {
		t.Errorf("weights = %+v", ts.chat.lastOpts)
	}
	if ts.chat.lastOpts.VectorK != 50 || ts.chat.lastOpts.KeywordK != 50 {
		t.Errorf("fan-out = %+v", ts.chat.lastOpts)
	}
}

func TestChat_ConversationIDThreadsThrough(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.resp.ConversationID = "conv-from-client"

	body := `{"message":"more like the last one","conversation_id":"conv-from-client"}`
	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	defer resp.Body.Close()

	if ts.chat.lastOpts.ConversationID != "conv-from-client" {
		t.Errorf("pipeline conversation id = %q, want conv-from-client", ts.chat.lastOpts.ConversationID)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ConversationID != "conv-from-client" {
		t.Errorf("conversation_id = %q, want conv-from-client", out.ConversationID)
	}
}

func TestChat_AuthenticatedUserReachesPipeline(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", bearer(signedToken(t, "user-7")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ts.chat.lastUser != "user-7" {
		t.Errorf("user id = %q, want user-7", ts.chat.lastUser)
	}
}

func TestChat_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var out errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.Code != "invalid_input" {
		t.Errorf("code = %q", out.Code)
	}
}

func TestChat_InvalidInputFromPipeline(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.err = fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)

	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":""}`))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var out errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(out.Message, "query must not be empty") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestChat_UnexpectedErrorHidden(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.err = fmt.Errorf("pipeline exploded: secret dsn")

	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var out errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if strings.Contains(out.Message, "dsn") {
		t.Errorf("internal detail leaked: %q", out.Message)
	}
}

func TestHistory_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/chat/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHistory_List(t *testing.T) {
	ts := newTestServer(t)
	ts.history.convs = []conversation.Conversation{
		{ID: "c1", UserID: "user-1", Query: "shoes", ProductsFound: 3},
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/chat/history?limit=10", nil)
	req.Header.Set("Authorization", bearer(signedToken(t, "user-1")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if out.UserID != "user-1" || out.Total != 1 {
		t.Errorf("history = %+v", out)
	}
	if out.Conversations[0].ConversationID != "c1" {
		t.Errorf("conversation = %+v", out.Conversations[0])
	}
}

func TestHistory_Delete(t *testing.T) {
	ts := newTestServer(t)
	ts.history.deleted = 4

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/chat/history", nil)
	req.Header.Set("Authorization", bearer(signedToken(t, "user-1")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE history: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out deleteHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Deleted != 4 {
		t.Errorf("deleted = %d, want 4", out.Deleted)
	}
}

func TestPackages_CreateRunsPipeline(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(packageRequest{
		Query:       "running shoes",
		UserID:      "user-3",
		Preferences: map[string]string{"budget": "under 100"},
	})
	resp, err := http.Post(ts.URL+"/api/v1/packages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST packages: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created packageResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.SessionID != "conv-1" {
		t.Errorf("session id = %q, want conv-1", created.SessionID)
	}
	if created.Status != "completed" {
		t.Errorf("status = %q", created.Status)
	}
	if len(created.Products) != 2 || created.ProductsFound != 2 {
		t.Errorf("products = %d/%d, want 2/2", len(created.Products), created.ProductsFound)
	}
	if len(created.StepsCompleted) != 5 {
		t.Errorf("steps = %v", created.StepsCompleted)
	}

	if ts.chat.calls != 1 {
		t.Errorf("pipeline calls = %d, want 1", ts.chat.calls)
	}
	if ts.chat.lastUser != "user-3" {
		t.Errorf("pipeline user = %q, want user-3", ts.chat.lastUser)
	}
	if !strings.Contains(ts.chat.lastOpts.UserContext, "budget=under 100") {
		t.Errorf("user context = %q", ts.chat.lastOpts.UserContext)
	}

	ts.packages.got = packagesuc.Package{SessionID: created.SessionID, ProductsFound: 2}
	got, err := http.Get(ts.URL + "/api/v1/packages/" + created.SessionID)
	if err != nil {
		t.Fatalf("GET package: %v", err)
	}
	got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", got.StatusCode)
	}
}

func TestHistory_DeleteOne(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/chat/history/c42", nil)
	req.Header.Set("Authorization", bearer(signedToken(t, "user-1")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE history/c42: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ts.history.deletedOne != "c42" {
		t.Errorf("deleted conversation = %q, want c42", ts.history.deletedOne)
	}
}

func TestPackages_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.packages.err = fmt.Errorf("package missing: %w", domain.ErrNotFound)

	resp, err := http.Get(ts.URL + "/api/v1/packages/missing")
	if err != nil {
		t.Fatalf("GET package: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestLiveness(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthDetailed(t *testing.T) {
	ts := newTestServer(t)
	ts.health.report = health.Report{
		Status: health.Degraded,
		Checks: map[string]health.CheckResult{
			"database":  health.CheckOK,
			"embedding": health.CheckError,
		},
	}

	resp, err := http.Get(ts.URL + "/health/detailed")
	if err != nil {
		t.Fatalf("GET /health/detailed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("degraded status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Status string                        `json:"status"`
		Checks map[string]health.CheckResult `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "degraded" || out.Checks["embedding"] != health.CheckError {
		t.Errorf("report = %+v", out)
	}
}

func TestHealthDetailed_Unhealthy(t *testing.T) {
	ts := newTestServer(t)
	ts.health.report = health.Report{
		Status: health.Unhealthy,
		Checks: map[string]health.CheckResult{"database": health.CheckError},
	}

	resp, err := http.Get(ts.URL + "/health/detailed")
	if err != nil {
		t.Fatalf("GET /health/detailed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}
