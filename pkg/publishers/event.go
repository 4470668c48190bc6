package publishers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one endpoint snapshot published downstream.
type Event struct {
	ID           string          `json:"id"`
	JobID        string          `json:"job_id"`
	Kind         string          `json:"kind"`
	Pair         string          `json:"pair,omitempty"`
	SubaccountID string          `json:"subaccount_id,omitempty"`
	Digest       string          `json:"digest"`
	Payload      json.RawMessage `json:"payload"`
	CollectedAt  time.Time       `json:"collected_at"`
}

// NewEvent constructs an Event with a fresh id for the given job snapshot.
func NewEvent(jobID, kind, digest string, payload json.RawMessage) Event {
	return Event{
		ID:          uuid.NewString(),
		JobID:       jobID,
		Kind:        kind,
		Digest:      digest,
		Payload:     payload,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes returns the routing attributes attached by queue/topic sinks.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"job_id": e.JobID,
		"kind":   e.Kind,
	}
	if e.Pair != "" {
		attrs["pair"] = e.Pair
	}
	return attrs
}
