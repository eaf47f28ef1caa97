// Package record owns durable storage of ingestion records and their
// ingredient rows.
package record

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 100")
)

// IngestionRecord is one analysis request.
type IngestionRecord struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"userId"`
	MediaRef   string    `json:"imagePath"`
	Confidence *int      `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IngredientEntry is one detected ingredient line of an IngestionRecord.
type IngredientEntry struct {
	ID          int64   `json:"id"`
	LogID       int64   `json:"logId"`
	Name        string  `json:"ingredientName"`
	Kcal        int     `json:"kcal"`
	WeightGrams float64 `json:"weight"`
}

// Store is the RecordStore contract. Each write commits independently.
type Store interface {
	// CreatePendingLog inserts a record with no confidence and returns its id.
	CreatePendingLog(ctx context.Context, ownerID int64, mediaRef string) (int64, error)
	// InsertIngredient appends one ingredient row. It never upserts.
	InsertIngredient(ctx context.Context, entry IngredientEntry) (int64, error)
	GetLog(ctx context.Context, id int64) (IngestionRecord, error)
	CountIngredients(ctx context.Context, logID int64) (int, error)
	// SetConfidence reports false when the record does not exist.
	SetConfidence(ctx context.Context, id int64, confidence int) (bool, error)

	ListIngredients(ctx context.Context, logID int64) ([]IngredientEntry, error)
	ListLogsByOwner(ctx context.Context, ownerID int64) ([]IngestionRecord, error)
	// DeleteLog removes the record and its ingredient rows.
	DeleteLog(ctx context.Context, id int64) (bool, error)
}

// ValidConfidence reports whether c is an acceptable confidence score.
func ValidConfidence(c int) bool {
	return c >= 0 && c <= 100
}

// RoundWeight rounds grams to two decimal places.
func RoundWeight(w float64) float64 {
	return math.Round(w*100) / 100
}

// Validate checks an entry before it is written.
func (e IngredientEntry) Validate() error {
	switch {
	case e.LogID <= 0:
		return errors.New("logId is required")
	case e.Name == "":
		return errors.New("ingredient name is required")
	case e.Kcal < 0:
		return errors.New("kcal must be non-negative")
	case e.WeightGrams < 0 || math.IsNaN(e.WeightGrams) || math.IsInf(e.WeightGrams, 0):
		return errors.New("weight must be a non-negative number")
	}
	return nil
}
