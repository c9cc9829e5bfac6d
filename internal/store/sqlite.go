package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/profile-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	seed        TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	fields      TEXT,
	failures    TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at  DATETIME,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS profiles (
	subject    TEXT PRIMARY KEY,
	fields     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_email ON runs(email);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, seed model.IdentitySeed) (*model.EnrichmentRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	seedJSON, err := json.Marshal(seed)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal seed")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, seed, email, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(seedJSON), seed.Email, string(model.RunStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.EnrichmentRun{
		ID:        id,
		Seed:      seed,
		Status:    model.RunStatusPending,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	var startedAt any
	if status == model.RunStatusRunning {
		startedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, started_at = COALESCE(?, started_at) WHERE id = ?`,
		string(status), startedAt, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.EnrichmentRun) error {
	fieldsJSON, err := json.Marshal(run.ProfileFields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields")
	}
	failuresJSON, err := json.Marshal(run.Failures)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failures")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, fields = ?, failures = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), string(fieldsJSON), string(failuresJSON), run.Error, time.Now().UTC(), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.EnrichmentRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seed, status, fields, failures, error, created_at, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.EnrichmentRun, error) {
	query := `SELECT id, seed, status, fields, failures, error, created_at, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Email != "" {
		query += ` AND email = ?`
		args = append(args, filter.Email)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.EnrichmentRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs rows")
}

func (s *SQLiteStore) GetProfile(ctx context.Context, subject string) (map[string]model.ProfileField, error) {
	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM profiles WHERE subject = ?`, subject,
	).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return map[string]model.ProfileField{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", subject)
	}

	var fields map[string]model.ProfileField
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal profile fields")
	}
	return fields, nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, subject string, fields map[string]model.ProfileField) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile fields")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (subject, fields, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(subject) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		subject, string(fieldsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save profile %s", subject)
}

// scannable covers sql.Row and sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.EnrichmentRun, error) {
	var run model.EnrichmentRun
	var seedJSON string
	var status string
	var fieldsJSON, failuresJSON sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&run.ID, &seedJSON, &status, &fieldsJSON, &failuresJSON, &run.Error,
		&run.CreatedAt, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(err, "store: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	if err := json.Unmarshal([]byte(seedJSON), &run.Seed); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal seed")
	}
	run.Status = model.RunStatus(status)
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &run.ProfileFields); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal fields")
		}
	}
	if failuresJSON.Valid && failuresJSON.String != "" {
		if err := json.Unmarshal([]byte(failuresJSON.String), &run.Failures); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal failures")
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("store: %s %s not found", kind, id)
	}
	return nil
}
