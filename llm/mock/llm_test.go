package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlog/agent"
	"foodlog/record"
	"foodlog/tools"
)

func TestMockLLMClient_Invoke(t *testing.T) {
	llm := NewLLMClient()
	registry := tools.NewRegistry(record.NewMemStore())
	prompt := agent.NewPrompt(42, agent.Media{Data: []byte("img"), ContentType: "image/jpeg"}, "", registry)
	ctx := context.Background()

	t.Run("phase 1: logs ingredients for the prompt's logId", func(t *testing.T) {
		response, err := llm.Invoke(ctx, prompt)
		require.NoError(t, err)
		require.Len(t, response.ToolCalls, 1)
		assert.Equal(t, "logIngredients", response.ToolCalls[0].Name)
		assert.Equal(t, 42.0, response.ToolCalls[0].Input["logId"])
		assert.Len(t, response.ToolCalls[0].Input["ingredients"], 3)
	})

	t.Run("phase 2: sets confidence", func(t *testing.T) {
		p := prompt
		p.Messages = append(append([]agent.Message{}, prompt.Messages...), agent.NewToolResultMessage([]agent.ToolResult{
			{ToolName: "logIngredients", Data: map[string]any{"status": "SUCCESS"}},
		}))

		response, err := llm.Invoke(ctx, p)
		require.NoError(t, err)
		require.Len(t, response.ToolCalls, 1)
		assert.Equal(t, "setAnalysisConfidence", response.ToolCalls[0].Name)
		assert.Equal(t, 80.0, response.ToolCalls[0].Input["confidence"])
	})

	t.Run("phase 3: plain text once both tools ran", func(t *testing.T) {
		p := prompt
		p.Messages = append(append([]agent.Message{}, prompt.Messages...), agent.NewToolResultMessage([]agent.ToolResult{
			{ToolName: "logIngredients", Data: map[string]any{"status": "SUCCESS"}},
			{ToolName: "setAnalysisConfidence", Data: map[string]any{"status": "SUCCESS"}},
		}))

		response, err := llm.Invoke(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, response.ToolCalls)
		assert.Contains(t, response.Content, "logId 42")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := llm.Invoke(cctx, prompt)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScripted(t *testing.T) {
	s := NewScripted(
		Calls(tools.Call{Name: "logIngredients"}),
		Text("all done"),
	)
	ctx := context.Background()

	r1, err := s.Invoke(ctx, agent.Prompt{})
	require.NoError(t, err)
	assert.Len(t, r1.ToolCalls, 1)

	r2, err := s.Invoke(ctx, agent.Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "all done", r2.Content)

	r3, err := s.Invoke(ctx, agent.Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "done", r3.Content)

	assert.Len(t, s.Prompts(), 3)
}
