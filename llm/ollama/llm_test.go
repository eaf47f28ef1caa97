package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlog/agent"
	"foodlog/record"
	"foodlog/tools"
)

// mockHTTPClient implements the HTTPClient interface for testing
type mockHTTPClient struct {
	response *http.Response
	err      error
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.response, m.err
}

// createMockResponse creates a mock HTTP response
func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    ClientOpts
		wantErr bool
	}{
		{
			name: "valid client creation",
			opts: ClientOpts{BaseEndpoint: "http://localhost:11434/", ModelID: "llava"},
		},
		{
			name:    "missing endpoint",
			opts:    ClientOpts{ModelID: "llava"},
			wantErr: true,
		},
		{
			name:    "missing model",
			opts:    ClientOpts{BaseEndpoint: "http://localhost:11434"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewClient(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:11434/api/chat", got.endpoint)
			assert.Equal(t, "llava", got.ModelID())
			assert.Equal(t, float32(defaultTemperature), got.options.Temperature)
			assert.Equal(t, float32(defaultTopP), got.options.TopP)
			assert.NotNil(t, got.httpClient)
		})
	}
}

func TestClient_Invoke(t *testing.T) {
	userPrompt := agent.Prompt{
		Messages: []agent.Message{
			{Role: "user", Content: agent.MessageParts{{Type: "text", Text: "Analyze this"}}},
		},
	}

	tests := []struct {
		name           string
		mockResponse   *http.Response
		mockError      error
		expectedResult agent.Response
		wantErr        bool
		errContains    string
	}{
		{
			name: "successful response with content",
			mockResponse: createMockResponse(200, `{
				"message": {"role": "assistant", "content": "Logged."},
				"done_reason": "stop"
			}`),
			expectedResult: agent.Response{Content: "Logged."},
		},
		{
			name: "successful response with tool calls",
			mockResponse: createMockResponse(200, `{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [
						{"function": {"name": "setAnalysisConfidence", "arguments": {"logId": 7, "confidence": 90}}},
						{"id": "abc", "function": {"name": "logIngredients", "arguments": null}}
					]
				}
			}`),
			expectedResult: agent.Response{
				ToolCalls: []tools.Call{
					{Name: "setAnalysisConfidence", Input: map[string]any{"logId": float64(7), "confidence": float64(90)}, ToolUseID: "call_0"},
					{Name: "logIngredients", Input: map[string]any{}, ToolUseID: "abc"},
				},
			},
		},
		{
			name:         "HTTP error",
			mockResponse: createMockResponse(500, `{"error": "Internal server error"}`),
			wantErr:      true,
			errContains:  "LLM_CLIENT:",
		},
		{
			name:      "network error",
			mockError: io.EOF,
			wantErr:   true,
		},
		{
			name:           "malformed JSON response",
			mockResponse:   createMockResponse(200, `{"message": {"content": "cut off"`),
			expectedResult: agent.Response{Content: `{"message": {"content": "cut off"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(ClientOpts{
				BaseEndpoint: "http://localhost:11434",
				ModelID:      "llava",
				HTTPClient:   &mockHTTPClient{response: tt.mockResponse, err: tt.mockError},
			})
			require.NoError(t, err)

			result, err := client.Invoke(context.Background(), userPrompt)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedResult, result)
		})
	}
}

func TestClient_Invoke_WireRequest(t *testing.T) {
	var got wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"ok"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClientOpts{BaseEndpoint: srv.URL, ModelID: "llava", HTTPClient: srv.Client()})
	require.NoError(t, err)

	registry := tools.NewRegistry(record.NewMemStore())
	prompt := agent.NewPrompt(7, agent.Media{Data: []byte("jpeg bytes"), ContentType: "image/jpeg"}, "", registry)

	resp, err := client.Invoke(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	assert.Equal(t, "llava", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, float32(defaultTemperature), got.Options.Temperature)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "logId: 7")
	require.Len(t, got.Messages[1].Images, 1)
	decoded, err := base64.StdEncoding.DecodeString(got.Messages[1].Images[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), decoded)

	require.Len(t, got.Tools, 2)
	assert.Equal(t, "function", got.Tools[0].Type)
	assert.Equal(t, "logIngredients", got.Tools[0].Function.Name)
	assert.Equal(t, []any{"logId", "ingredients"}, got.Tools[0].Function.Parameters["required"])
}

func TestClient_buildRequest(t *testing.T) {
	tests := []struct {
		name     string
		prompt   agent.Prompt
		expected []Message
	}{
		{
			name: "text parts are joined",
			prompt: agent.Prompt{Messages: []agent.Message{
				{Role: "system", Content: agent.MessageParts{{Type: "text", Text: "Be precise."}}},
				{Role: "user", Content: agent.MessageParts{{Type: "text", Text: "Hello "}, {Type: "text", Text: "there"}}},
			}},
			expected: []Message{
				{Role: "system", Content: "Be precise."},
				{Role: "user", Content: "Hello there"},
			},
		},
		{
			name: "tool round trip",
			prompt: agent.Prompt{Messages: []agent.Message{
				{Role: "assistant", Content: agent.MessageParts{{
					Type: "tool_use", ToolUseID: "t1", ToolName: "setAnalysisConfidence",
					Data: map[string]any{"logId": 7, "confidence": 80},
				}}},
				agent.NewToolResultMessage([]agent.ToolResult{
					{ToolUseID: "t1", ToolName: "setAnalysisConfidence", Data: map[string]any{"status": "SUCCESS"}},
				}),
			}},
			expected: []Message{
				{Role: "assistant", ToolCalls: []wireToolCall{{
					ID:       "t1",
					Function: wireFunction{Name: "setAnalysisConfidence", Arguments: map[string]any{"logId": 7, "confidence": 80}},
				}}},
				{Role: "tool", Name: "setAnalysisConfidence", Content: `{"status":"SUCCESS"}`},
			},
		},
		{
			name: "tool result without name is skipped",
			prompt: agent.Prompt{Messages: []agent.Message{
				agent.NewToolResultMessage([]agent.ToolResult{{ToolUseID: "t1", Data: map[string]any{}}}),
				{Role: "user", Content: agent.MessageParts{{Type: "text", Text: "Hello"}}},
			}},
			expected: []Message{
				{Role: "user", Content: "Hello"},
			},
		},
		{
			name: "handle unknown role",
			prompt: agent.Prompt{Messages: []agent.Message{
				{Role: "unknown", Content: agent.MessageParts{{Type: "text", Text: "treated as user"}}},
			}},
			expected: []Message{
				{Role: "user", Content: "treated as user"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{}
			result, err := client.buildRequest(tt.prompt)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
