package interpreter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new openai: %v", err)
	}
	return client
}

func TestOpenAIInterpretSendsPromptAndParsesAnswer(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"assistant_message":"Done.","updates":{"economy":{"tax_rate":0.2}}}`))
	})

	outcome := client.Interpret(context.Background(), Request{
		State:   country.Default("alice", "President"),
		Role:    "President",
		Command: "raise taxes",
	})
	if !outcome.OK() {
		t.Fatalf("expected proposal, got %+v", outcome.Failure)
	}
	if outcome.Proposal.Message != "Done." {
		t.Fatalf("message = %q", outcome.Proposal.Message)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody["model"] != DefaultModel {
		t.Fatalf("model = %v, want %s", gotBody["model"], DefaultModel)
	}
	format, _ := gotBody["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("response_format = %v", gotBody["response_format"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
}

func TestOpenAIInterpretMalformedAnswer(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("I'd rather not."))
	})
	outcome := client.Interpret(context.Background(), Request{State: country.State{}, Command: "x"})
	if outcome.OK() || outcome.Failure.Kind != FailureMalformed {
		t.Fatalf("expected malformed failure, got %+v", outcome)
	}
}

func TestOpenAIInterpretClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailureKind
	}{
		{http.StatusTooManyRequests, FailureRateLimited},
		{http.StatusBadGateway, FailureTransport},
		{http.StatusUnauthorized, FailureUnavailable},
	}
	for _, tt := range tests {
		client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"error"}}`)
		})
		outcome := client.Interpret(context.Background(), Request{State: country.State{}, Command: "x"})
		if outcome.OK() || outcome.Failure.Kind != tt.want {
			t.Errorf("status %d: got %+v, want %s", tt.status, outcome.Failure, tt.want)
		}
	}
}

func TestOpenAIInterpretTimeout(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	outcome := client.Interpret(ctx, Request{State: country.State{}, Command: "x"})
	if outcome.OK() || outcome.Failure.Kind != FailureTimeout {
		t.Fatalf("expected timeout failure, got %+v", outcome)
	}
}

func TestOpenAIDescribe(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("  A proud island nation.  "))
	})
	got, err := client.Describe(context.Background(), country.Default("alice", "President"))
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if got != "A proud island nation." {
		t.Fatalf("description = %q", got)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
	client, err := NewOpenAI(OpenAIConfig{APIKey: "k", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("new openai: %v", err)
	}
	if status := client.Status(); status.Mode != ModeInterpreter || status.Model != "gpt-test" {
		t.Fatalf("unexpected status %+v", status)
	}
}
