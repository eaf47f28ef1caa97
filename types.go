package foodlog

import (
	"context"
	"net/http"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Summary is what gets announced after an ingestion is reconciled.
type Summary struct {
	LogID      int64
	OwnerID    int64
	Count      int
	Confidence *int
}

// Notifier announces reconciled ingestions. Implementations must not block
// the caller for long; failures are reported, never retried.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}
