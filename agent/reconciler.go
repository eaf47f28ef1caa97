package agent

import (
	"context"
	"errors"
	"fmt"

	"foodlog"
	"foodlog/record"
	"foodlog/tools"
)

// IngestResponse is what the client receives after a reconciled ingestion.
type IngestResponse struct {
	Status     string `json:"status"`
	LogID      int64  `json:"logId"`
	Count      int    `json:"count"`
	Confidence *int   `json:"confidence,omitempty"`
}

// Reconciler derives the client response from persisted state only.
type Reconciler struct {
	records record.Store
}

func NewReconciler(records record.Store) *Reconciler {
	return &Reconciler{records: records}
}

func (r *Reconciler) Build(ctx context.Context, logID int64) (IngestResponse, error) {
	count, err := r.records.CountIngredients(ctx, logID)
	if err != nil {
		return IngestResponse{}, reconcileErr(err)
	}
	rec, err := r.records.GetLog(ctx, logID)
	if err != nil {
		return IngestResponse{}, reconcileErr(err)
	}

	return IngestResponse{
		Status:     tools.StatusSuccess,
		LogID:      logID,
		Count:      count,
		Confidence: rec.Confidence,
	}, nil
}

func reconcileErr(err error) error {
	if errors.Is(err, foodlog.ErrStorage) {
		return fmt.Errorf("reconcile: %w", err)
	}
	return fmt.Errorf("%w: reconcile: %w", foodlog.ErrStorage, err)
}
