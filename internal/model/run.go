package model

import "time"

// RunStatus represents the lifecycle state of an enrichment run. A run is
// terminal once completed or failed and is never re-entered.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SourceFailure records one per-source error for the run's failures list.
type SourceFailure struct {
	SourceURL string    `json:"sourceUrl"`
	ErrorKind ErrorKind `json:"errorKind"`
	Detail    string    `json:"detail,omitempty"`
}

// EnrichmentRun is the overall request/response record. It is the only
// mutable state shared across pipeline stages; every other record is
// immutable once produced by its owning stage.
type EnrichmentRun struct {
	ID            string                  `json:"id"`
	Seed          IdentitySeed            `json:"seed"`
	Status        RunStatus               `json:"status"`
	ProfileFields map[string]ProfileField `json:"profileFields,omitempty"`
	Failures      []SourceFailure         `json:"failures,omitempty"`
	Error         string                  `json:"error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	StartedAt     *time.Time              `json:"started_at,omitempty"`
	FinishedAt    *time.Time              `json:"finished_at,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r *EnrichmentRun) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
