package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-enrich/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Kept as an interface so
// tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, seed, email, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, started_at = COALESCE($2, started_at) WHERE id = $3`,
	"finish_run":        `UPDATE runs SET status = $1, fields = $2, failures = $3, error = $4, finished_at = $5 WHERE id = $6`,
	"get_run":           `SELECT id, seed, status, fields, failures, error, created_at, started_at, finished_at FROM runs WHERE id = $1`,
	"get_profile":       `SELECT fields FROM profiles WHERE subject = $1`,
	"save_profile": `INSERT INTO profiles (subject, fields, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (subject) DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seed        JSONB NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	fields      JSONB,
	failures    JSONB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS profiles (
	subject    TEXT PRIMARY KEY,
	fields     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_email ON runs(email);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, seed model.IdentitySeed) (*model.EnrichmentRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	seedJSON, err := json.Marshal(seed)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal seed")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, seed, email, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(seedJSON), seed.Email, string(model.RunStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.EnrichmentRun{
		ID:        id,
		Seed:      seed,
		Status:    model.RunStatusPending,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	var startedAt *time.Time
	if status == model.RunStatusRunning {
		now := time.Now().UTC()
		startedAt = &now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, started_at = COALESCE($2, started_at) WHERE id = $3`,
		string(status), startedAt, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.EnrichmentRun) error {
	fieldsJSON, err := json.Marshal(run.ProfileFields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fields")
	}
	failuresJSON, err := json.Marshal(run.Failures)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal failures")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, fields = $2, failures = $3, error = $4, finished_at = $5 WHERE id = $6`,
		string(run.Status), string(fieldsJSON), string(failuresJSON), run.Error, time.Now().UTC(), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: run %s not found", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.EnrichmentRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, seed, status, fields, failures, error, created_at, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.EnrichmentRun, error) {
	query := `SELECT id, seed, status, fields, failures, error, created_at, started_at, finished_at FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Email != "" {
		query += ` AND email = ` + arg(filter.Email)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.EnrichmentRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs rows")
}

func (s *PostgresStore) GetProfile(ctx context.Context, subject string) (map[string]model.ProfileField, error) {
	var fieldsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT fields FROM profiles WHERE subject = $1`, subject,
	).Scan(&fieldsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]model.ProfileField{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", subject)
	}

	var fields map[string]model.ProfileField
	if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile fields")
	}
	return fields, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, subject string, fields map[string]model.ProfileField) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile fields")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (subject, fields, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (subject) DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`,
		subject, string(fieldsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save profile %s", subject)
}

func scanPgRun(row pgx.Row) (*model.EnrichmentRun, error) {
	var run model.EnrichmentRun
	var seedJSON []byte
	var status string
	var fieldsJSON, failuresJSON []byte
	var startedAt, finishedAt *time.Time

	err := row.Scan(&run.ID, &seedJSON, &status, &fieldsJSON, &failuresJSON, &run.Error,
		&run.CreatedAt, &startedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(err, "store: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	if err := json.Unmarshal(seedJSON, &run.Seed); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal seed")
	}
	run.Status = model.RunStatus(status)
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &run.ProfileFields); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal fields")
		}
	}
	if len(failuresJSON) > 0 {
		if err := json.Unmarshal(failuresJSON, &run.Failures); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal failures")
		}
	}
	run.StartedAt = startedAt
	run.FinishedAt = finishedAt
	return &run, nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
