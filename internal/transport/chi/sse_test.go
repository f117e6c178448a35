package chi

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, body *bufio.Scanner) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	for body.Scan() {
		line := body.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events = append(events, current)
				current = sseEvent{}
			}
		}
	}
	return events
}

func TestChatStream_EventOrder(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/chat/stream?message=running+shoes")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	events := readSSE(t, bufio.NewScanner(resp.Body))
	want := []string{
		eventStatus, eventStatus, eventStatus, eventStatus,
		eventMessage, eventMessage,
		eventProducts,
		eventComplete,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, e := range events {
		if e.name != want[i] {
			t.Errorf("event %d = %q, want %q", i, e.name, want[i])
		}
	}

	var first struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(events[0].data), &first); err != nil {
		t.Fatalf("decode first status: %v", err)
	}
	if first.Status != "received" {
		t.Errorf("first status = %q, want received", first.Status)
	}

	var complete chatResponse
	if err := json.Unmarshal([]byte(events[len(events)-1].data), &complete); err != nil {
		t.Fatalf("decode complete: %v", err)
	}
	if complete.ConversationID != "conv-1" || len(complete.Products) != 2 {
		t.Errorf("complete = %+v", complete)
	}
}

func TestChatStream_MissingMessage(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/chat/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatStream_BadWeight(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/chat/stream?message=hi&semantic_weight=abc")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
