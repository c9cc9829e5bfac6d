// Package store persists enrichment runs and merged profiles behind a small
// interface with SQLite and Postgres implementations.
package store

import (
	"context"

	"github.com/sells-group/profile-enrich/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Email  string          `json:"email,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, seed model.IdentitySeed) (*model.EnrichmentRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FinishRun(ctx context.Context, run *model.EnrichmentRun) error
	GetRun(ctx context.Context, runID string) (*model.EnrichmentRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.EnrichmentRun, error)

	// Profiles, keyed by the seed's subject key. SaveProfile replaces the
	// whole field map in one statement; readers never observe a partial merge.
	GetProfile(ctx context.Context, subject string) (map[string]model.ProfileField, error)
	SaveProfile(ctx context.Context, subject string, fields map[string]model.ProfileField) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// SubjectKey derives the profile storage key for a seed: the email when
// present, otherwise the primary URL, otherwise the first social URL.
func SubjectKey(seed model.IdentitySeed) string {
	if seed.Email != "" {
		return seed.Email
	}
	if seed.PrimaryURL != "" {
		return seed.PrimaryURL
	}
	if len(seed.SocialURLs) > 0 {
		return seed.SocialURLs[0]
	}
	return ""
}
