package bedrock

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithydocument "github.com/aws/smithy-go/document"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlog/agent"
	"foodlog/record"
	"foodlog/tools"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	input    *bedrockruntime.ConverseInput
	response *bedrockruntime.ConverseOutput
	err      error
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func textPrompt(text string) agent.Prompt {
	return agent.Prompt{
		Messages: []agent.Message{
			{Role: "user", Content: agent.MessageParts{{Type: "text", Text: text}}},
		},
	}
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		input    LLMOptions
		expected LLMOptions
	}{
		{
			name:  "empty options uses defaults",
			input: LLMOptions{},
			expected: LLMOptions{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name: "partial options with defaults",
			input: LLMOptions{
				ModelID:   "custom-model",
				MaxTokens: 2048,
			},
			expected: LLMOptions{
				ModelID:     "custom-model",
				MaxTokens:   2048,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewLLMClient(mockClient, tt.input)

			assert.Equal(t, tt.expected, client.opts)
			assert.Equal(t, tt.expected.ModelID, client.ModelID())
		})
	}
}

func TestLLMClient_Invoke(t *testing.T) {
	tests := []struct {
		name          string
		mockResponse  *bedrockruntime.ConverseOutput
		mockError     error
		expectedResp  agent.Response
		expectedError error
	}{
		{
			name: "final text is returned as is",
			mockResponse: &bedrockruntime.ConverseOutput{
				StopReason: types.StopReasonEndTurn,
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "Logged 2 ingredients."},
						},
					},
				},
				Usage:   &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(20)},
				Metrics: &types.ConverseMetrics{LatencyMs: aws.Int64(100)},
			},
			expectedResp: agent.Response{Content: "Logged 2 ingredients."},
		},
		{
			name: "tool use response",
			mockResponse: &bedrockruntime.ConverseOutput{
				StopReason: types.StopReasonToolUse,
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Content: []types.ContentBlock{
							&types.ContentBlockMemberToolUse{
								Value: types.ToolUseBlock{
									ToolUseId: aws.String("test-id"),
									Name:      aws.String("setAnalysisConfidence"),
								},
							},
						},
					},
				},
			},
			expectedResp: agent.Response{
				ToolCalls: []tools.Call{
					{Name: "setAnalysisConfidence", Input: map[string]any{}, ToolUseID: "test-id"},
				},
			},
		},
		{
			name:          "max tokens error",
			mockResponse:  &bedrockruntime.ConverseOutput{StopReason: types.StopReasonMaxTokens},
			expectedError: ErrMaxTokens,
		},
		{
			name:          "safety filter error",
			mockResponse:  &bedrockruntime.ConverseOutput{StopReason: types.StopReasonContentFiltered},
			expectedError: ErrFiltered,
		},
		{
			name:          "bedrock API error",
			mockError:     assert.AnError,
			expectedError: assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{
				response: tt.mockResponse,
				err:      tt.mockError,
			}

			llmClient := NewLLMClient(mockClient, LLMOptions{})
			resp, err := llmClient.Invoke(context.Background(), textPrompt("Hello"))

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedResp, resp)
		})
	}
}

type stubDoer struct {
	body string
	req  *http.Request
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Request:    req,
	}, nil
}

func TestLLMClient_Invoke_ToolInputFromWire(t *testing.T) {
	doer := &stubDoer{body: `{
		"output": {"message": {"role": "assistant", "content": [
			{"text": "Logging now."},
			{"toolUse": {"toolUseId": "tu-1", "name": "logIngredients", "input": {
				"logId": 7,
				"ingredients": [{"ingredient": "Tomato", "kcal": 5, "weight": 30.5}]
			}}},
			{"toolUse": {"toolUseId": "tu-2", "name": "setAnalysisConfidence", "input": {"logId": 7, "confidence": "85"}}}
		]}},
		"stopReason": "tool_use",
		"usage": {"inputTokens": 10, "outputTokens": 20, "totalTokens": 30},
		"metrics": {"latencyMs": 100}
	}`}

	runtime := bedrockruntime.New(bedrockruntime.Options{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
		HTTPClient:  doer,
	})

	resp, err := NewLLMClient(runtime, LLMOptions{}).Invoke(context.Background(), textPrompt("Hello"))
	require.NoError(t, err)
	require.NotNil(t, doer.req)
	assert.Contains(t, doer.req.URL.Path, "/converse")

	assert.Equal(t, "Logging now.", resp.Content)
	assert.Equal(t, []tools.Call{
		{
			Name: "logIngredients",
			Input: map[string]any{
				"logId": int64(7),
				"ingredients": []any{
					map[string]any{"ingredient": "Tomato", "kcal": int64(5), "weight": 30.5},
				},
			},
			ToolUseID: "tu-1",
		},
		{
			Name:      "setAnalysisConfidence",
			Input:     map[string]any{"logId": int64(7), "confidence": "85"},
			ToolUseID: "tu-2",
		},
	}, resp.ToolCalls)
}

func TestLLMClient_ConverseInput(t *testing.T) {
	registry := tools.NewRegistry(record.NewMemStore())
	prompt := agent.NewPrompt(7, agent.Media{Data: []byte("png bytes"), ContentType: "image/png"}, "", registry)
	prompt.Messages = append(prompt.Messages,
		agent.Message{Role: "assistant", Content: agent.MessageParts{{
			Type: "tool_use", ToolUseID: "t1", ToolName: "setAnalysisConfidence",
			Data: map[string]any{"logId": 7, "confidence": 150},
		}}},
		agent.NewToolResultMessage([]agent.ToolResult{{
			ToolUseID: "t1", ToolName: "setAnalysisConfidence",
			Data: tools.Failed("confidence must be between 0 and 100."),
		}}),
	)

	client := NewLLMClient(&mockBedrockClient{}, LLMOptions{})
	in, err := client.converseInput(prompt)
	require.NoError(t, err)

	require.Len(t, in.System, 1)
	require.Len(t, in.Messages, 3)

	user := in.Messages[0]
	assert.Equal(t, types.ConversationRoleUser, user.Role)
	require.Len(t, user.Content, 2)
	text, ok := user.Content[0].(*types.ContentBlockMemberText)
	require.True(t, ok)
	assert.Contains(t, text.Value, "logId: 7")
	img, ok := user.Content[1].(*types.ContentBlockMemberImage)
	require.True(t, ok)
	assert.Equal(t, types.ImageFormatPng, img.Value.Format)
	src, ok := img.Value.Source.(*types.ImageSourceMemberBytes)
	require.True(t, ok)
	assert.Equal(t, []byte("png bytes"), src.Value)

	result, ok := in.Messages[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, types.ToolResultStatusError, result.Value.Status)
	assert.Equal(t, "t1", aws.ToString(result.Value.ToolUseId))

	require.NotNil(t, in.ToolConfig)
	assert.Len(t, in.ToolConfig.Tools, 2)
}

func TestTextFromOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   *bedrockruntime.ConverseOutput
		expected string
	}{
		{
			name:     "nil output",
			output:   nil,
			expected: "",
		},
		{
			name: "single text block",
			output: &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "Hello world"},
						},
					},
				},
			},
			expected: "Hello world",
		},
		{
			name: "multiple text blocks",
			output: &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "Hello"},
							&types.ContentBlockMemberText{Value: "world"},
						},
					},
				},
			},
			expected: "Hello\nworld",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := textFromOutput(tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{name: "whole number float to int", input: 2.0, expected: int64(2)},
		{name: "decimal float unchanged", input: 2.5, expected: 2.5},
		{name: "string unchanged", input: "hello", expected: "hello"},
		{name: "numeric string unchanged", input: "7", expected: "7"},
		{name: "document number", input: smithydocument.Number("85"), expected: int64(85)},
		{name: "document decimal", input: smithydocument.Number("60.5"), expected: 60.5},
		{name: "json number", input: json.Number("3"), expected: int64(3)},
		{
			name:     "stringified array",
			input:    `[{"ingredient":"Tomato","kcal":5,"weight":30.5}]`,
			expected: []any{map[string]any{"ingredient": "Tomato", "kcal": int64(5), "weight": 30.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeInput(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestToolCallsFromOutput(t *testing.T) {
	output := &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: "Logging now."},
					&types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							ToolUseId: aws.String("id1"),
							Name:      aws.String("logIngredients"),
							Input:     document.NewLazyDocument(map[string]any{}),
						},
					},
					&types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							ToolUseId: aws.String("id2"),
							Name:      aws.String("setAnalysisConfidence"),
							Input:     document.NewLazyDocument(map[string]any{}),
						},
					},
				},
			},
		},
	}

	result, err := toolCallsFromOutput(output)
	require.NoError(t, err)
	assert.Equal(t, []tools.Call{
		{Name: "logIngredients", Input: map[string]any{}, ToolUseID: "id1"},
		{Name: "setAnalysisConfidence", Input: map[string]any{}, ToolUseID: "id2"},
	}, result)
}

func TestBuildToolSpec(t *testing.T) {
	tool := agent.Tool{
		Name:        "logIngredients",
		Description: "Logs ingredients",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}

	result, err := buildToolSpec(tool)
	require.NoError(t, err)
	assert.Equal(t, tool.Name, *result.Name)
	assert.Equal(t, tool.Description, *result.Description)
	assert.NotNil(t, result.InputSchema)
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, types.ImageFormatJpeg, imageFormat("image/jpeg"))
	assert.Equal(t, types.ImageFormatWebp, imageFormat("IMAGE/WEBP"))
	assert.Equal(t, types.ImageFormatJpeg, imageFormat(""))
}
