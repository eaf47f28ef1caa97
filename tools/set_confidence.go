package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"foodlog/record"
)

type SetConfidence struct{ store record.Store }

func NewSetConfidence(store record.Store) *SetConfidence { return &SetConfidence{store: store} }

func (t *SetConfidence) Name() string  { return "setAnalysisConfidence" }
func (t *SetConfidence) Title() string { return "Set Analysis Confidence" }
func (t *SetConfidence) Description() string {
	return "Sets the analysis confidence score (0-100) for a specific food log entry. Always pass the exact logId provided by the user."
}

func (t *SetConfidence) InputSchema() *jsonschema.Schema {
	minConfidence := 0.0
	maxConfidence := 100.0
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"logId": {
				Type:        "integer",
				Description: "The unique identifier of the food log entry to update.",
			},
			"confidence": {
				Type:        "integer",
				Minimum:     &minConfidence,
				Maximum:     &maxConfidence,
				Description: "How confident you are in your analysis, from 0 to 100.",
			},
		},
		Required: []string{"logId", "confidence"},
	}
}

func (t *SetConfidence) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"status":     {Type: "string", Enum: []any{StatusSuccess, StatusFailed}},
			"logId":      {Type: "integer"},
			"confidence": {Type: "integer"},
			"message":    {Type: "string"},
		},
		Required: []string{"status"},
	}
}

type setConfidenceResult struct {
	Status     string `json:"status"`
	LogID      int64  `json:"logId"`
	Confidence int    `json:"confidence"`
}

func (t *SetConfidence) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	logID, err := intArg(input, "logId")
	if errors.Is(err, errMissing) {
		return Failed("logId is required."), nil
	}
	if err != nil {
		return Failed(err.Error()), nil
	}

	raw, err := intArg(input, "confidence")
	if errors.Is(err, errMissing) {
		return Failed("confidence is required."), nil
	}
	if err != nil {
		return Failed(err.Error()), nil
	}
	if raw < 0 || raw > 100 {
		slog.Warn("TOOL: Rejected confidence", "log_id", logID, "confidence", raw)
		return Failed("confidence must be between 0 and 100."), nil
	}
	confidence := int(raw)

	ok, err := t.store.SetConfidence(ctx, logID, confidence)
	if err != nil {
		slog.Error("TOOL: Set confidence failed", "log_id", logID, "error", err)
		return Failed(fmt.Sprintf("Failed to set confidence for logId %d: %v", logID, err)), nil
	}
	if !ok {
		return Failed(fmt.Sprintf("FoodLog not found for id: %d", logID)), nil
	}

	slog.Info("TOOL: Confidence set", "log_id", logID, "confidence", confidence)
	return toMap(setConfidenceResult{Status: StatusSuccess, LogID: logID, Confidence: confidence}), nil
}
