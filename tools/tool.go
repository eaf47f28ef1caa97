package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type Tool interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	OutputSchema() *jsonschema.Schema
	Run(ctx context.Context, input map[string]any) (output map[string]any, err error)
}

type Call struct {
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
}

// Status values reported back to the model.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Failed builds the payload for a rejected call.
func Failed(message string) map[string]any {
	return map[string]any{"status": StatusFailed, "message": message}
}

// IsFailed reports whether a tool output carries a FAILED status.
func IsFailed(out map[string]any) bool {
	s, _ := out["status"].(string)
	return s == StatusFailed
}

// marshal -> map[string]any to keep outputs uniform
func toMap(v any) map[string]any {
	b, _ := json.Marshal(v)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}
