package agent

import (
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"foodlog/tools"
)

type MessagePart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Data      map[string]any `json:"data,omitempty"` // JSON result we want to feed back
	MediaType string         `json:"media_type,omitempty"`
	MediaRef  string         `json:"media_ref,omitempty"`
	Image     []byte         `json:"-"`
}

type MessageParts []MessagePart

func (mp MessageParts) Join() string {
	var result string
	for _, part := range mp {
		if part.Type == "text" {
			result += part.Text
		}
	}
	return result
}

type Message struct {
	Role    string       `json:"role"`
	Content MessageParts `json:"content"`
}

type ToolResult struct {
	ToolUseID string
	ToolName  string
	Data      map[string]any
}

func NewToolResultMessage(results []ToolResult) Message {
	var parts MessageParts
	for _, result := range results {
		parts = append(parts, MessagePart{
			Type:      "tool_result",
			ToolUseID: result.ToolUseID,
			ToolName:  result.ToolName,
			Data:      result.Data,
		})
	}
	return Message{
		Role:    "user",
		Content: parts,
	}
}

// Response represents the model's response structure.
type Response struct {
	Content   string       `json:"content,omitempty"`
	ToolCalls []tools.Call `json:"tool_calls,omitempty"`
}

type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

type Prompt struct {
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

// Media is the stored photo attached to the prompt.
type Media struct {
	Ref         string
	ContentType string
	Data        []byte
}

// NewPrompt builds the opening conversation for one ingestion. The log id is
// embedded verbatim; the tools from tp are the only ones the model may call.
func NewPrompt(logID int64, media Media, notes string, tp ToolProvider) Prompt {
	available := tp.GetTools()
	specs := make([]Tool, 0, len(available))
	for _, tool := range available {
		specs = append(specs, Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}

	user := MessageParts{{Type: "text", Text: UserInstruction(logID, notes)}}
	if len(media.Data) > 0 {
		user = append(user, MessagePart{
			Type:      "image",
			MediaType: media.ContentType,
			MediaRef:  media.Ref,
			Image:     media.Data,
		})
	}

	return Prompt{
		Messages: []Message{
			{
				Role:    "system",
				Content: MessageParts{{Type: "text", Text: systemPrompt}},
			},
			{
				Role:    "user",
				Content: user,
			},
		},
		Tools: specs,
	}
}

// UserInstruction is the per-request text that pins the model to logID.
func UserInstruction(logID int64, notes string) string {
	text := fmt.Sprintf(
		"Analyze the attached food image. Detect every single ingredient, its estimated calories (kcal), "+
			"and its estimated weight in grams. Use the 'logIngredients' tool to save this data. "+
			"You MUST use the provided logId: %d. "+
			"Then generate a confidence score (0-100) for your analysis using the 'setAnalysisConfidence' tool.",
		logID,
	)
	if notes = strings.TrimSpace(notes); notes != "" {
		text += " Additional user notes: " + notes
	}
	return text
}

const systemPrompt = `You are an expert food-logging assistant. Your primary function is to analyze images of food and identify all visually detectable components.

CORE INSTRUCTIONS:
1. IDENTIFY INDIVIDUAL INGREDIENTS: detect specific ingredients (at most 10). Do not log the name of the dish.
   - Wrong: "Salad", 100 kcal, 150g
   - Correct: "Lettuce", 10 kcal, 60g; "Tomato", 5 kcal, 30g; "Carrot", 5 kcal, 30g
2. ESTIMATE WEIGHT AND CALORIES: for each ingredient give its total weight in grams (e.g. 85.50) and its total calories (e.g. 120) as seen in the image.
3. USE THE TOOLS: always call logIngredients to submit the ingredient analysis, then call setAnalysisConfidence to submit your overall confidence.
4. PASS THE LOG ID: the user provides a logId. Pass this exact logId to every tool call.
5. CONFIDENCE SCORING: after logging ingredients, choose an integer from 0 to 100 reflecting visual clarity and certainty.
6. VISUALS ONLY: log only ingredients that are visible. Do not guess salt, pepper or cooking oil unless a large amount is clearly visible (e.g. "Olive Oil Drizzle").

TOOL USE:
Call the tools directly through the tool interface. Do not wrap tool requests in JSON text such as {"tool_calls":[...]}.
Do not echo tool results yourself. When both tools have been called, reply with a short plain-text summary.
`

// HasToolResult reports whether a tool_result for the named tool is already in
// the conversation.
func (p *Prompt) HasToolResult(tool string) bool {
	for _, msg := range p.Messages {
		for _, part := range msg.Content {
			if part.Type == "tool_result" && part.ToolName == tool {
				return true
			}
		}
	}
	return false
}

// Image returns the first image attached to the conversation.
func (p *Prompt) Image() (MessagePart, bool) {
	for _, msg := range p.Messages {
		for _, part := range msg.Content {
			if part.Type == "image" {
				return part, true
			}
		}
	}
	return MessagePart{}, false
}
