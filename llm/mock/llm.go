package mock

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"foodlog/agent"
	"foodlog/tools"
)

var logIDPattern = regexp.MustCompile(`logId: (\d+)`)

// LLMClient pretends to analyse a salad. It is deterministic and only serves
// to exercise the full pipeline without a model provider.
type LLMClient struct{}

func NewLLMClient() *LLMClient {
	return &LLMClient{}
}

func (m *LLMClient) ModelID() string {
	return "mock"
}

func (m *LLMClient) Invoke(ctx context.Context, prompt agent.Prompt) (agent.Response, error) {
	if err := ctx.Err(); err != nil {
		return agent.Response{}, err
	}
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	logID, ok := findLogID(prompt)
	if !ok {
		return agent.Response{Content: "No logId was provided, nothing to log."}, nil
	}

	// Phase 1: log the ingredients
	if !prompt.HasToolResult("logIngredients") {
		slog.Info("LLM_CLIENT: Returning logIngredients call", "log_id", logID)
		return agent.Response{ToolCalls: []tools.Call{{
			Name:      "logIngredients",
			ToolUseID: "mock-1",
			Input: map[string]any{
				"logId": float64(logID),
				"ingredients": []any{
					map[string]any{"ingredient": "Lettuce", "kcal": 10.0, "weight": 60.0},
					map[string]any{"ingredient": "Tomato", "kcal": 5.0, "weight": 30.0},
					map[string]any{"ingredient": "Carrot", "kcal": 5.0, "weight": 30.0},
				},
			},
		}}}, nil
	}

	// Phase 2: report confidence
	if !prompt.HasToolResult("setAnalysisConfidence") {
		slog.Info("LLM_CLIENT: Returning setAnalysisConfidence call", "log_id", logID)
		return agent.Response{ToolCalls: []tools.Call{{
			Name:      "setAnalysisConfidence",
			ToolUseID: "mock-2",
			Input:     map[string]any{"logId": float64(logID), "confidence": 80.0},
		}}}, nil
	}

	// Phase 3: done
	return agent.Response{Content: fmt.Sprintf("Logged 3 ingredients for logId %d with confidence 80.", logID)}, nil
}

func findLogID(prompt agent.Prompt) (int64, bool) {
	for _, msg := range prompt.Messages {
		if msg.Role != "user" {
			continue
		}
		if m := logIDPattern.FindStringSubmatch(msg.Content.Join()); m != nil {
			id, err := strconv.ParseInt(m[1], 10, 64)
			return id, err == nil
		}
	}
	return 0, false
}

// Step produces one model turn.
type Step func(ctx context.Context, prompt agent.Prompt) (agent.Response, error)

// Scripted replays a fixed list of steps, one per Invoke, and records every
// prompt it was given. Once the steps run out it answers with plain text.
type Scripted struct {
	mu      sync.Mutex
	steps   []Step
	prompts []agent.Prompt
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) Invoke(ctx context.Context, prompt agent.Prompt) (agent.Response, error) {
	s.mu.Lock()
	n := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if n >= len(s.steps) {
		return agent.Response{Content: "done"}, nil
	}
	return s.steps[n](ctx, prompt)
}

// Prompts returns the prompts received so far.
func (s *Scripted) Prompts() []agent.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Prompt(nil), s.prompts...)
}

// Calls returns a step that requests the given tool calls.
func Calls(calls ...tools.Call) Step {
	return func(ctx context.Context, _ agent.Prompt) (agent.Response, error) {
		return agent.Response{ToolCalls: calls}, nil
	}
}

// Text returns a step that answers with plain text.
func Text(content string) Step {
	return func(ctx context.Context, _ agent.Prompt) (agent.Response, error) {
		return agent.Response{Content: content}, nil
	}
}

// Fail returns a step that fails like a provider error.
func Fail(err error) Step {
	return func(ctx context.Context, _ agent.Prompt) (agent.Response, error) {
		return agent.Response{}, err
	}
}

// Hang returns a step that blocks until the context ends.
func Hang() Step {
	return func(ctx context.Context, _ agent.Prompt) (agent.Response, error) {
		<-ctx.Done()
		return agent.Response{}, ctx.Err()
	}
}
