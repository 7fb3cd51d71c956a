package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a persisted, scored regulatory event as served by the API.
type Event struct {
	ID          uuid.UUID         `json:"id"`
	Source      string            `json:"source"`
	SourceID    string            `json:"source_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ExternalURL string            `json:"external_url"`
	Signature   string            `json:"signature"`
	Score       int               `json:"score"`
	Reasons     []string          `json:"reasons"`
	Tier        string            `json:"tier"`
	Summary     string            `json:"summary,omitempty"`
	SourceTags  []string          `json:"source_tags"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	DeltaOld    *float64          `json:"delta_old,omitempty"`
	DeltaNew    *float64          `json:"delta_new,omitempty"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Feedback is a user's helpful/not-helpful vote on an event.
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Helpful   bool      `json:"helpful"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceStatus is the per-source health record. Degraded is derived at read
// time (any error inside the rolling 24h window), never stored.
type SourceStatus struct {
	Source         string     `json:"source"`
	LastSuccess    *time.Time `json:"last_success"`
	LastError      *time.Time `json:"last_error"`
	ErrorCount24h  int        `json:"error_count_24h"`
	LastDigestSent *time.Time `json:"last_digest_sent,omitempty"`
	Degraded       bool       `json:"degraded"`
}

// PipelineRun records the outcome of one source pipeline invocation.
type PipelineRun struct {
	ID          uuid.UUID  `json:"id"`
	Source      string     `json:"source"`
	Status      string     `json:"status"` // completed, failed
	Found       int        `json:"found"`
	Suppressed  int        `json:"suppressed"`
	Persisted   int        `json:"persisted"`
	Summarized  int        `json:"summarized"`
	Errors      int        `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
