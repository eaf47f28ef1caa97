package ollama

import (
	"foodlog/agent"
)

// Message represents an Ollama chat message. Tool results travel as
// role "tool" messages carrying the function name.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Name      string         `json:"name,omitempty"`
	Images    []string       `json:"images,omitempty"` // base64, no data: prefix
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

// Tool represents a tool in Ollama's native format
type Tool struct {
	Type     string     `json:"type"`
	Function ToolSchema `json:"function"`
}

// ToolSchema represents the function schema for Ollama tools
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function wireFunction `json:"function"`
}

type wireResponse struct {
	Message    Message `json:"message"`
	DoneReason string  `json:"done_reason,omitempty"`
	// other metadata omitted but available
}

type options struct {
	Temperature   float32 `json:"temperature,omitempty"`
	TopP          float32 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
}

type wireRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options,omitempty"`
}

// toolsFor converts the prompt's tool definitions to Ollama's schema.
func toolsFor(specs []agent.Tool) []Tool {
	out := make([]Tool, len(specs))
	for i, spec := range specs {
		parameters := map[string]any{
			"type": "object",
		}
		if spec.InputSchema != nil {
			parameters["properties"] = spec.InputSchema.Properties
			if len(spec.InputSchema.Required) > 0 {
				parameters["required"] = spec.InputSchema.Required
			}
		}

		out[i] = Tool{
			Type: "function",
			Function: ToolSchema{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  parameters,
			},
		}
	}
	return out
}
