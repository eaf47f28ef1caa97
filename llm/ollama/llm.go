package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"foodlog"
	"foodlog/agent"
	"foodlog/tools"
)

const (
	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

type Client struct {
	endpoint   string
	model      string
	httpClient foodlog.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	Temperature  float32
	TopP         float32
	HTTPClient   foodlog.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.BaseEndpoint) == "" {
		return nil, fmt.Errorf("ollama base endpoint is required")
	}
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("ollama model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: 1.05,
			NumCtx:        16384, // vision prompts are large; raise if the host can handle it
		},
	}, nil
}

// ModelID reports the model in use.
func (c *Client) ModelID() string {
	return c.model
}

// Invoke sends the prompt to the Ollama chat API. Tool calls are returned for
// the orchestrator to execute; anything else is returned as plain content.
func (c *Client) Invoke(ctx context.Context, prompt agent.Prompt) (agent.Response, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	msgs, err := c.buildRequest(prompt)
	if err != nil {
		return agent.Response{}, err
	}

	reqBody := wireRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    toolsFor(prompt.Tools),
		Stream:   false,
		Options:  c.options,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return agent.Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return agent.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agent.Response{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return agent.Response{}, fmt.Errorf("LLM_CLIENT: %s: %s", resp.Status, string(body))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		slog.Warn("LLM_CLIENT: decode failed, returning raw", "err", err, "body", string(body))
		return agent.Response{Content: string(body)}, nil
	}

	if len(wr.Message.ToolCalls) == 0 {
		slog.Info("LLM_CLIENT: Extracted final text", "text_len", len(wr.Message.Content), "done_reason", wr.DoneReason)
		return agent.Response{Content: wr.Message.Content}, nil
	}

	calls := make([]tools.Call, 0, len(wr.Message.ToolCalls))
	for i, call := range wr.Message.ToolCalls {
		id := call.ID
		if id == "" {
			// Older Ollama builds do not assign ids; results are matched by name.
			id = fmt.Sprintf("call_%d", i)
		}
		args := call.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, tools.Call{
			Name:      call.Function.Name,
			Input:     args,
			ToolUseID: id,
		})
	}
	slog.Info("LLM_CLIENT: Extracted tool calls", "calls_len", len(calls))
	return agent.Response{Content: wr.Message.Content, ToolCalls: calls}, nil
}

// buildRequest converts the provider-neutral prompt into Ollama chat messages.
// - Text parts are concatenated into content; image parts become base64 images
// - tool_use parts become assistant tool_calls
// - Each tool_result part becomes its own role=tool message (tool requires Name)
func (c *Client) buildRequest(prompt agent.Prompt) ([]Message, error) {
	messages := make([]Message, 0, len(prompt.Messages))

	for _, m := range prompt.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			slog.Warn("ollama: unknown role, coercing to user", "role", m.Role)
			m.Role = "user"
		}

		msg := Message{Role: m.Role}
		var results []Message
		for _, part := range m.Content {
			switch part.Type {
			case "text":
				msg.Content += part.Text

			case "image":
				if len(part.Image) == 0 {
					continue
				}
				msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(part.Image))

			case "tool_use":
				args := part.Data
				if args == nil {
					args = map[string]any{}
				}
				msg.ToolCalls = append(msg.ToolCalls, wireToolCall{
					ID:       part.ToolUseID,
					Function: wireFunction{Name: part.ToolName, Arguments: args},
				})

			case "tool_result":
				// Native Ollama tool result: role=tool, name=<function>, content=<JSON string>
				if strings.TrimSpace(part.ToolName) == "" {
					slog.Warn("ollama: dropping tool result without name")
					continue
				}
				content, err := json.Marshal(part.Data)
				if err != nil {
					return nil, fmt.Errorf("tool result %s: %w", part.ToolName, err)
				}
				results = append(results, Message{
					Role:    "tool",
					Name:    part.ToolName,
					Content: string(content),
				})
			}
		}

		if msg.Content != "" || len(msg.Images) > 0 || len(msg.ToolCalls) > 0 {
			messages = append(messages, msg)
		}
		messages = append(messages, results...)
	}

	return messages, nil
}
