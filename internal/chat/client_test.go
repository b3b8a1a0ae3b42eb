package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kbmirror/backend/internal/storage/models"
)

func TestCompleteUsesAssistantEndpoint(t *testing.T) {
	var gotPath string
	var gotModel string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		gotModel = req.Model

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "mirrored answer"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	inst := &models.Instance{BaseURL: server.URL, APIKey: "key"}
	assistant := &models.ChatAssistant{RemoteID: "asst-1", ModelName: "gpt-4o", Temperature: 0.2}

	c := NewClient(Options{})
	answer, err := c.Complete(context.Background(), inst, assistant, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if answer != "mirrored answer" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if gotPath != "/api/v1/chats_openai/asst-1/chat/completions" {
		t.Fatalf("unexpected endpoint %q", gotPath)
	}
	if gotModel != "gpt-4o" {
		t.Fatalf("expected assistant model forwarded, got %q", gotModel)
	}
}

func TestCompleteRequiresRemoteAssistant(t *testing.T) {
	c := NewClient(Options{})
	inst := &models.Instance{BaseURL: "http://remote.local", APIKey: "key"}
	assistant := &models.ChatAssistant{}

	if _, err := c.Complete(context.Background(), inst, assistant, nil); err == nil {
		t.Fatal("expected error for assistant without remote id")
	}
}

func TestHistoryMessages(t *testing.T) {
	conv := &models.Conversation{
		Dialog: map[string]interface{}{
			"messages": []interface{}{
				map[string]interface{}{"role": "user", "content": "hi"},
				map[string]interface{}{"role": "assistant", "content": "hello"},
				map[string]interface{}{"content": "no role"},
				"garbage",
			},
		},
	}

	messages := HistoryMessages(conv)
	if len(messages) != 2 {
		t.Fatalf("expected 2 valid messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Content != "hello" {
		t.Fatalf("unexpected messages %+v", messages)
	}

	if got := HistoryMessages(nil); got != nil {
		t.Fatalf("expected nil for nil conversation, got %v", got)
	}
	if got := HistoryMessages(&models.Conversation{}); got != nil {
		t.Fatalf("expected nil for empty dialog, got %v", got)
	}
}
