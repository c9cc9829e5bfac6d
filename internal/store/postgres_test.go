package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-enrich/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "jane@acme.dev", "pending", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.IdentitySeed{Email: "jane@acme.dev"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusPending, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatusNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("completed", pgxmock.AnyArg(), "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-id", model.RunStatusCompleted)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinishRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status .+ finished_at`).
		WithArgs("completed", pgxmock.AnyArg(), pgxmock.AnyArg(), "", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	run := &model.EnrichmentRun{
		ID:     "run-1",
		Status: model.RunStatusCompleted,
		ProfileFields: map[string]model.ProfileField{
			model.FieldName: {Value: "Jane Doe", Confidence: 0.9, SourceURLs: []string{"https://janedoe.dev"}},
		},
	}
	require.NoError(t, s.FinishRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetProfile(t *testing.T) {
	s, mock := newMockStore(t)

	fields := map[string]model.ProfileField{
		model.FieldCompany: {Value: "Acme", Confidence: 0.85, SourceURLs: []string{"https://acme.dev"}},
	}
	fieldsJSON, err := json.Marshal(fields)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT fields FROM profiles`).
		WithArgs("jane@acme.dev").
		WillReturnRows(pgxmock.NewRows([]string{"fields"}).AddRow(fieldsJSON))

	got, err := s.GetProfile(context.Background(), "jane@acme.dev")
	require.NoError(t, err)
	require.Contains(t, got, model.FieldCompany)
	assert.Equal(t, "Acme", got[model.FieldCompany].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetProfileEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT fields FROM profiles`).
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"fields"}))

	got, err := s.GetProfile(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveProfile(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs("jane@acme.dev", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveProfile(context.Background(), "jane@acme.dev", map[string]model.ProfileField{
		model.FieldName: {Value: "Jane Doe", Confidence: 0.9, SourceURLs: []string{"https://janedoe.dev"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
