package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFakeCompletionServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
			t.Errorf("missing bearer token, got %q", auth)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected system+user messages, got %d", len(req.Messages))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": answer}},
			},
		})
	}))
}

func TestReplyHandler(t *testing.T) {
	server := newFakeCompletionServer(t, "  hey there!  ")
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	handler := ReplyHandler(client)

	payload, _ := json.Marshal(&ReplyRequest{
		Prompt:    "what's up",
		Username:  "alice",
		GroupName: "testers",
	})

	value, err := handler(context.Background(), payload)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	resp, ok := value.(*ReplyResponse)
	if !ok {
		t.Fatalf("unexpected value type %T", value)
	}
	if resp.Reply != "hey there!" {
		t.Fatalf("expected trimmed reply, got %q", resp.Reply)
	}
}

func TestReplyHandlerBadPayload(t *testing.T) {
	client := NewClient("http://unused", "k", "m")
	handler := ReplyHandler(client)

	if _, err := handler(context.Background(), json.RawMessage(`{broken`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestSafetyHandlerVerdicts(t *testing.T) {
	tests := []struct {
		answer string
		want   string
	}{
		{"safe", "safe"},
		{"HARASSMENT", "harassment"},
		{"hate.", "hate"},
		{" violence ", "violence"},
		{"I think this message is fine", "safe"},
	}

	for _, tt := range tests {
		server := newFakeCompletionServer(t, tt.answer)
		client := NewClient(server.URL, "test-key", "test-model")
		handler := SafetyHandler(client)

		payload, _ := json.Marshal(&ScanRequest{Content: "some message"})
		value, err := handler(context.Background(), payload)
		server.Close()
		if err != nil {
			t.Fatalf("handler(%q): %v", tt.answer, err)
		}

		resp := value.(*ScanResponse)
		if resp.Verdict != tt.want {
			t.Fatalf("answer %q: expected verdict %q, got %q", tt.answer, tt.want, resp.Verdict)
		}
	}
}

func TestSafetyHandlerEmptyContentIsSafe(t *testing.T) {
	// No API call should happen for empty content; a nil-server client
	// proves it.
	client := NewClient("http://unreachable.invalid", "k", "m")
	handler := SafetyHandler(client)

	payload, _ := json.Marshal(&ScanRequest{Content: "   "})
	value, err := handler(context.Background(), payload)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if value.(*ScanResponse).Verdict != "safe" {
		t.Fatalf("expected safe verdict for empty content")
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient("http://unused", "", "m")
	if _, err := client.ChatCompletion(context.Background(), "s", "u", 10); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is too long", 10, "this is..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.text, tt.limit); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
	}
}
