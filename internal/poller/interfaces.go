package poller

import (
	"context"
	"encoding/json"

	"github.com/samvad-hq/valr-go/pkg/publishers"
	"github.com/samvad-hq/valr-go/pkg/valr"
)

// Fetcher executes a VALR call and returns the raw payload. *valr.Client satisfies it.
type Fetcher interface {
	Do(ctx context.Context, call valr.Call) (json.RawMessage, error)
}

// EventPublisher publishes snapshot events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers digests of snapshots already published.
type Deduper interface {
	Seen(digest string) (bool, error)
	Mark(digest string) error
}
