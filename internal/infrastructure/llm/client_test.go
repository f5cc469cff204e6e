package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/graph"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(Config{Name: "test", BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-test"}, zap.NewNop())
	return c, srv
}

func TestClient_Invoke_PlainText(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-test" {
			t.Errorf("model: got %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(apiResponse{
			Model:   "gpt-test",
			Choices: []apiChoice{{Message: apiMessage{Role: "assistant", Content: "hello there"}}},
			Usage:   apiUsage{PromptTokens: 10, CompletionTokens: 5},
		})
	})
	defer srv.Close()

	human, _ := entity.NewMessage("m1", entity.RoleHuman, "hi")
	resp, err := client.Invoke(context.Background(), graph.ChatRequest{Messages: []*entity.Message{human}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Message.Content() != "hello there" {
		t.Errorf("content: got %q", resp.Message.Content())
	}
	if resp.Usage.PromptTokens != 10 || resp.Usage.CompletionTokens != 5 {
		t.Errorf("usage: got %+v", resp.Usage)
	}
}

func TestClient_Invoke_NativeToolCall(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiResponse{
			Choices: []apiChoice{{Message: apiMessage{
				Role: "assistant",
				ToolCalls: []apiToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: apiToolCallFunc{
						Name:      "read_file",
						Arguments: `{"path":"a.go"}`,
					},
				}},
			}}},
		})
	})
	defer srv.Close()

	human, _ := entity.NewMessage("m1", entity.RoleHuman, "read a.go")
	resp, err := client.Invoke(context.Background(), graph.ChatRequest{
		Messages: []*entity.Message{human},
		Tools:    []domaintool.Definition{{Name: "read_file", Description: "reads a file"}},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	calls := resp.Message.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "read_file" {
		t.Fatalf("tool calls: got %+v", calls)
	}
	if calls[0].Arguments["path"] != "a.go" {
		t.Errorf("args: got %+v", calls[0].Arguments)
	}
}

func TestClient_Invoke_TextEmbeddedToolCallFallback(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiResponse{
			Choices: []apiChoice{{Message: apiMessage{
				Role:    "assistant",
				Content: `Let me check. [TOOL_CALL] read_file({"path":"b.go"}) [/TOOL_CALL]`,
			}}},
		})
	})
	defer srv.Close()

	human, _ := entity.NewMessage("m1", entity.RoleHuman, "read b.go")
	resp, err := client.Invoke(context.Background(), graph.ChatRequest{Messages: []*entity.Message{human}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	calls := resp.Message.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "read_file" {
		t.Fatalf("expected text-embedded tool call parsed, got %+v", calls)
	}
}

func TestClient_Invoke_APIError(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"maximum context length exceeded"}`))
	})
	defer srv.Close()

	human, _ := entity.NewMessage("m1", entity.RoleHuman, "hi")
	_, err := client.Invoke(context.Background(), graph.ChatRequest{Messages: []*entity.Message{human}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_Generate_UsedByCompressor(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiResponse{
			Choices: []apiChoice{{Message: apiMessage{Role: "assistant", Content: "a tidy summary"}}},
		})
	})
	defer srv.Close()

	summary, err := client.Generate(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary != "a tidy summary" {
		t.Errorf("summary: got %q", summary)
	}
}
