package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-enrich/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSeed() model.IdentitySeed {
	return model.IdentitySeed{
		Email:      "jane@acme.dev",
		PrimaryURL: "https://janedoe.dev",
		SocialURLs: []string{"https://github.com/jdoe"},
	}
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testSeed())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusPending, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.Equal(t, "jane@acme.dev", got.Seed.Email)

	run.Status = model.RunStatusCompleted
	run.ProfileFields = map[string]model.ProfileField{
		model.FieldCompany: {
			Value:       "Acme",
			Confidence:  0.85,
			SourceURLs:  []string{"https://techcrunch.com/a"},
			LastUpdated: time.Now().UTC(),
			Provenance:  model.ProvenanceEnrichment,
		},
	}
	run.Failures = []model.SourceFailure{
		{SourceURL: "https://slow.example.com", ErrorKind: model.KindFetch, Detail: "timeout"},
	}
	require.NoError(t, s.FinishRun(ctx, run))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.NotNil(t, got.FinishedAt)
	require.Contains(t, got.ProfileFields, model.FieldCompany)
	assert.Equal(t, "Acme", got.ProfileFields[model.FieldCompany].Value)
	assert.InDelta(t, 0.85, got.ProfileFields[model.FieldCompany].Confidence, 1e-9)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, model.KindFetch, got.Failures[0].ErrorKind)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestSQLiteUpdateStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRunStatus(context.Background(), "nonexistent", model.RunStatusRunning)
	assert.Error(t, err)
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, testSeed())
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, model.IdentitySeed{Email: "other@example.com"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, r1.ID, model.RunStatusRunning))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, r1.ID, running[0].ID)

	byEmail, err := s.ListRuns(ctx, RunFilter{Email: "other@example.com"})
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetProfile(ctx, "jane@acme.dev")
	require.NoError(t, err)
	assert.Empty(t, got)

	fields := map[string]model.ProfileField{
		model.FieldName: {
			Value:       "Jane Doe",
			Confidence:  0.9,
			SourceURLs:  []string{"https://github.com/jdoe", "https://janedoe.dev"},
			LastUpdated: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			Provenance:  model.ProvenanceEnrichment,
		},
		model.FieldLocation: {
			Value:      "Lisbon, Portugal",
			Confidence: 0.6,
			SourceURLs: []string{"https://github.com/jdoe"},
			Provenance: model.ProvenanceUser,
		},
	}
	require.NoError(t, s.SaveProfile(ctx, "jane@acme.dev", fields))

	got, err = s.GetProfile(ctx, "jane@acme.dev")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Jane Doe", got[model.FieldName].Value)
	assert.Equal(t,
		[]string{"https://github.com/jdoe", "https://janedoe.dev"},
		got[model.FieldName].SourceURLs,
	)
	assert.Equal(t, model.ProvenanceUser, got[model.FieldLocation].Provenance)

	// Save replaces the whole map.
	require.NoError(t, s.SaveProfile(ctx, "jane@acme.dev", map[string]model.ProfileField{
		model.FieldName: fields[model.FieldName],
	}))
	got, err = s.GetProfile(ctx, "jane@acme.dev")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSubjectKey(t *testing.T) {
	assert.Equal(t, "jane@acme.dev", SubjectKey(testSeed()))
	assert.Equal(t, "https://janedoe.dev", SubjectKey(model.IdentitySeed{PrimaryURL: "https://janedoe.dev"}))
	assert.Equal(t, "https://github.com/jdoe", SubjectKey(model.IdentitySeed{SocialURLs: []string{"https://github.com/jdoe"}}))
	assert.Equal(t, "", SubjectKey(model.IdentitySeed{}))
}
