package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/graph"
	"github.com/ngoclaw/agentcore/internal/domain/service"
	"go.uber.org/zap"
)

// Config configures the HTTP client. BaseURL/APIKey/Model follow the
// OpenAI-compatible chat-completions contract shared by OpenAI, Bailian
// (Qwen), DeepSeek, Ollama, vLLM and most self-hosted gateways, the way
// the teacher's llm/openai.Provider targets it — this client keeps that
// one wire format instead of the teacher's full multi-provider failover
// router (spec.md §1 scopes "no LLM wire-format opinions beyond the
// abstract chat interface").
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client is a Go-native OpenAI-compatible HTTP client implementing
// graph.ChatModel, adapted from the teacher's llm/openai.Provider onto
// entity.Message/graph.ChatRequest instead of the teacher's provider-shaped
// service.LLMRequest/LLMMessage.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds an OpenAI-compatible chat client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Client{
		name:    cfg.Name,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		logger:  logger.With(zap.String("llm_client", cfg.Name)),
	}
}

var _ graph.ChatModel = (*Client)(nil)

// --- wire types (OpenAI chat-completions shape) ---

type apiMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function apiToolCallFunc `json:"function"`
}

type apiToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiTool struct {
	Type     string      `json:"type"`
	Function apiToolFunc `json:"function"`
}

type apiToolFunc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Tools       []apiTool    `json:"tools,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
}

type apiChoice struct {
	Message apiMessage `json:"message"`
}

type apiUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type apiResponse struct {
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

// Invoke implements graph.ChatModel.
func (c *Client) Invoke(ctx context.Context, req graph.ChatRequest) (*graph.ChatResponse, error) {
	apiReq := c.buildRequest(req)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("chat completion API error %d: %s", resp.StatusCode, string(respBody))
		if service.IsContextOverflowError(apiErr) {
			c.logger.Warn("context overflow reported by provider", zap.Int("status", resp.StatusCode))
		}
		return nil, apiErr
	}

	return c.parseResponse(respBody)
}

func (c *Client) buildRequest(req graph.ChatRequest) *apiRequest {
	model := req.ModelID
	if model == "" {
		model = c.model
	}
	// Strip provider prefix (e.g. "bailian/qwen3-max" -> "qwen3-max"), matching
	// the teacher's model-slug convention.
	if idx := strings.Index(model, "/"); idx >= 0 {
		model = model[idx+1:]
	}

	apiReq := &apiRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if req.SystemPrompt != "" {
		apiReq.Messages = append(apiReq.Messages, apiMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, messageToAPI(m))
	}

	for _, td := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, apiTool{
			Type: "function",
			Function: apiToolFunc{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}

	return apiReq
}

func messageToAPI(m *entity.Message) apiMessage {
	role := string(m.Role())
	switch m.Role() {
	case entity.RoleHuman:
		role = "user"
	case entity.RoleTool:
		role = "tool"
	}

	am := apiMessage{Role: role, Content: m.Content()}
	if m.Role() == entity.RoleTool {
		am.ToolCallID = m.CallID()
	}
	for _, tc := range m.ToolCalls() {
		am.ToolCalls = append(am.ToolCalls, apiToolCall{
			ID:   tc.CallID,
			Type: "function",
			Function: apiToolCallFunc{
				Name:      tc.Name,
				Arguments: marshalArgs(tc.Arguments),
			},
		})
	}
	return am
}

func marshalArgs(args map[string]interface{}) string {
	if args == nil {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (c *Client) parseResponse(body []byte) (*graph.ChatResponse, error) {
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}

	choice := apiResp.Choices[0].Message
	content := choice.Content
	var toolCalls []entity.ToolCallRequest

	for _, tc := range choice.ToolCalls {
		var args map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("parse tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		toolCalls = append(toolCalls, entity.ToolCallRequest{CallID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	// Fall back to text-embedded tool calls for models without native
	// function calling (spec.md §4.8's model-agnostic planner contract).
	if len(toolCalls) == 0 {
		cleaned, parsed := service.ParseToolCallsFromText(content)
		if len(parsed) > 0 {
			content = cleaned
			for _, p := range parsed {
				toolCalls = append(toolCalls, entity.ToolCallRequest{CallID: p.ID, Name: p.Name, Arguments: p.Arguments})
			}
		}
	}

	msg, err := entity.NewAssistantMessage(fmt.Sprintf("llm-%d", time.Now().UnixNano()), content, toolCalls)
	if err != nil {
		return nil, err
	}

	return &graph.ChatResponse{
		Message:   msg,
		Usage:     graph.Usage{PromptTokens: apiResp.Usage.PromptTokens, CompletionTokens: apiResp.Usage.CompletionTokens},
		ModelUsed: apiResp.Model,
	}, nil
}

// Generate implements context.ModelClient — a plain prompt-in/text-out call
// used by the context Compressor for summarization, sharing this same
// HTTP client instead of standing up a second provider.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := entity.NewMessage("compress-prompt", entity.RoleHuman, prompt)
	if err != nil {
		return "", err
	}
	resp, err := c.Invoke(ctx, graph.ChatRequest{Messages: []*entity.Message{msg}, ModelID: c.model})
	if err != nil {
		return "", err
	}
	if resp.Message == nil {
		return "", nil
	}
	return resp.Message.Content(), nil
}
