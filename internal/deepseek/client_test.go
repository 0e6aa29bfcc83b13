package deepseek

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChat(t *testing.T) {
	var gotAuth string
	var gotReq ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message:      ResponseMessage{Role: "assistant", Content: "All clear."},
				FinishReason: "stop",
			}},
			Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk-test", nil)
	resp, err := client.Chat(context.Background(), &ChatRequest{
		Model:       DefaultModel,
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   4000,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if gotReq.Model != DefaultModel {
		t.Errorf("model = %q, want %q", gotReq.Model, DefaultModel)
	}
	if resp.Choices[0].Message.Content != "All clear." {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}
}

func TestChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-key", nil)
	_, err := client.Chat(context.Background(), &ChatRequest{Model: DefaultModel})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "API error 401") {
		t.Errorf("error = %v, want status code in message", err)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v, want body in message", err)
	}
}

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int // expected key count
	}{
		{"valid", `{"id":"a","status":"open"}`, 2},
		{"empty string", "", 0},
		{"malformed", `{oops`, 0},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := FunctionCall{Arguments: tt.raw}
			got := fc.ParseArguments()
			if got == nil {
				t.Fatal("ParseArguments returned nil map")
			}
			if len(got) != tt.want {
				t.Errorf("got %d keys, want %d", len(got), tt.want)
			}
		})
	}
}
