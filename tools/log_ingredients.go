package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"foodlog/record"
)

type LogIngredients struct{ store record.Store }

func NewLogIngredients(store record.Store) *LogIngredients { return &LogIngredients{store: store} }

func (t *LogIngredients) Name() string  { return "logIngredients" }
func (t *LogIngredients) Title() string { return "Log Food Ingredients" }
func (t *LogIngredients) Description() string {
	return "Logs all detected food ingredients, including their estimated calories (kcal) and weight in grams, " +
		"from a food image to the database. Always pass the exact logId provided by the user."
}

func (t *LogIngredients) InputSchema() *jsonschema.Schema {
	minZero := 0.0
	minOne := 1
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"logId": {
				Type:        "integer",
				Description: "The unique identifier of the food log entry, used to associate all ingredients with the correct image.",
			},
			"ingredients": {
				Type:        "array",
				Description: "Every visually detected ingredient with its estimated calories and weight.",
				MinItems:    &minOne,
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"ingredient": {Type: "string", Description: "Ingredient name, e.g. Lettuce."},
						"kcal":       {Type: "integer", Minimum: &minZero, Description: "Estimated calories."},
						"weight":     {Type: "number", Minimum: &minZero, Description: "Estimated weight in grams, e.g. 85.50."},
					},
					Required: []string{"ingredient", "kcal", "weight"},
				},
			},
		},
		Required: []string{"logId", "ingredients"},
	}
}

func (t *LogIngredients) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"status":  {Type: "string", Enum: []any{StatusSuccess, StatusFailed}},
			"count":   {Type: "integer"},
			"logId":   {Type: "integer"},
			"message": {Type: "string"},
		},
		Required: []string{"status"},
	}
}

type logIngredientsResult struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	LogID  int64  `json:"logId"`
}

// Run inserts every entry independently. A bad entry or a failed insert only
// lowers the reported count.
func (t *LogIngredients) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	logID, err := intArg(input, "logId")
	if errors.Is(err, errMissing) {
		slog.Warn("TOOL: logIngredients called without logId")
		return Failed("logId is required."), nil
	}
	if err != nil {
		return Failed(err.Error()), nil
	}

	items, err := listArg(input, "ingredients")
	if err != nil && !errors.Is(err, errMissing) {
		return Failed(err.Error()), nil
	}
	if len(items) == 0 {
		slog.Warn("TOOL: logIngredients called with no ingredients", "log_id", logID)
		return Failed("No ingredients provided."), nil
	}

	slog.Info("TOOL: logIngredients", "log_id", logID, "ingredients", len(items))

	count := 0
	for i, item := range items {
		entry, err := parseEntry(logID, item)
		if err != nil {
			slog.Warn("TOOL: Skipping malformed ingredient", "log_id", logID, "index", i, "error", err)
			continue
		}
		if _, err := t.store.InsertIngredient(ctx, entry); err != nil {
			slog.Warn("TOOL: Ingredient insert failed", "log_id", logID, "ingredient", entry.Name, "error", err)
			continue
		}
		count++
	}

	slog.Info("TOOL: Logged ingredients", "log_id", logID, "count", count, "attempted", len(items))
	return toMap(logIngredientsResult{Status: StatusSuccess, Count: count, LogID: logID}), nil
}

func parseEntry(logID int64, item any) (record.IngredientEntry, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return record.IngredientEntry{}, fmt.Errorf("entry is %T, not an object", item)
	}

	name, _ := m["ingredient"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return record.IngredientEntry{}, errors.New("ingredient name is required")
	}

	kcalRaw, ok := m["kcal"]
	if !ok || kcalRaw == nil {
		return record.IngredientEntry{}, errors.New("kcal is required")
	}
	kcal, err := number(kcalRaw)
	if err != nil {
		return record.IngredientEntry{}, fmt.Errorf("kcal: %w", err)
	}

	weightRaw, ok := m["weight"]
	if !ok || weightRaw == nil {
		return record.IngredientEntry{}, errors.New("weight is required")
	}
	weight, err := number(weightRaw)
	if err != nil {
		return record.IngredientEntry{}, fmt.Errorf("weight: %w", err)
	}

	return record.IngredientEntry{
		LogID:       logID,
		Name:        name,
		Kcal:        int(math.Round(kcal)),
		WeightGrams: record.RoundWeight(weight),
	}, nil
}
