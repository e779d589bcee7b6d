package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/internal/normalize"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock implements it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Source columns of mixed case (SSI, the _LLM suffixes) must stay quoted or
// Postgres folds them to lower case and breaks the shared column contract.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS confirmation_data (
	id                             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	currency                       TEXT,
	"currency_LLM"                 TEXT,
	currency_validation            TEXT,
	settlement_amount              DOUBLE PRECISION,
	"settlement_amount_LLM"        TEXT,
	settlement_amount_validation   TEXT,
	buy_sell                       TEXT,
	"buy_sell_LLM"                 TEXT,
	buy_sell_validation            TEXT,
	isin                           TEXT,
	"isin_LLM"                     TEXT,
	isin_validation                TEXT,
	settlement_date                TEXT,
	"settlement_date_LLM"          TEXT,
	settlement_date_validation     TEXT,
	"SSI"                          TEXT,
	"SSI_LLM"                      TEXT,
	"SSI_validation"               TEXT,
	creation_date                  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extraction_runs (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	fields_updated INTEGER NOT NULL DEFAULT 0,
	failures       INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_extraction_runs_started_at ON extraction_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgRecordColumns = `id, creation_date,
	currency, "currency_LLM", currency_validation,
	settlement_amount, "settlement_amount_LLM", settlement_amount_validation,
	buy_sell, "buy_sell_LLM", buy_sell_validation,
	isin, "isin_LLM", isin_validation,
	settlement_date, "settlement_date_LLM", settlement_date_validation,
	"SSI", "SSI_LLM", "SSI_validation"`

func (s *PostgresStore) ListRecords(ctx context.Context) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRecordColumns+` FROM confirmation_data ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func scanPGRecord(rows pgx.Rows) (model.Record, error) {
	var (
		rec    model.Record
		amount *float64

		src = make([]*string, 6)
		llm = make([]*string, 6)
		val = make([]*string, 6)
	)

	err := rows.Scan(
		&rec.ID, &rec.CreationDate,
		&src[0], &llm[0], &val[0],
		&amount, &llm[1], &val[1],
		&src[2], &llm[2], &val[2],
		&src[3], &llm[3], &val[3],
		&src[4], &llm[4], &val[4],
		&src[5], &llm[5], &val[5],
	)
	if err != nil {
		return model.Record{}, err
	}

	if amount != nil {
		text := normalize.Amount(*amount)
		src[1] = &text
	}

	for i, f := range model.AllFields() {
		state := rec.Field(f)
		state.Source = src[i]
		state.Extracted = llm[i]
		if val[i] != nil {
			state.Status = model.ValidationStatus(*val[i])
		}
	}
	return rec, nil
}

func (s *PostgresStore) InsertRecord(ctx context.Context, row model.SourceRow) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO confirmation_data (currency, settlement_amount, buy_sell, isin, settlement_date, "SSI")
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		row.Currency, row.SettlementAmount, row.BuySell, row.ISIN, row.SettlementDate, row.SSI,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert record")
	}
	return id, nil
}

func (s *PostgresStore) SetExtractedValue(ctx context.Context, recordID int64, field model.Field, value string) (bool, error) {
	col := pgx.Identifier{fieldspec.For(field).ExtractedColumn}.Sanitize()
	tag, err := s.pool.Exec(ctx,
		`UPDATE confirmation_data SET `+col+` = $1 WHERE id = $2 AND `+col+` IS NULL`,
		value, recordID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: set %s for record %d", col, recordID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetValidationStatus(ctx context.Context, recordID int64, field model.Field, status model.ValidationStatus) error {
	col := pgx.Identifier{fieldspec.For(field).ValidationColumn}.Sanitize()
	tag, err := s.pool.Exec(ctx,
		`UPDATE confirmation_data SET `+col+` = $1 WHERE id = $2`,
		string(status), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set %s for record %d", col, recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: record %d not found", recordID)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, string(kind), string(model.RunStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create run")
	}
	return id, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, fieldsUpdated, failures int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs SET status = $1, fields_updated = $2, failures = $3, finished_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), fieldsUpdated, failures, time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "postgres: complete run %s", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "postgres: fail run %s", runID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, status, fields_updated, failures, started_at, finished_at
		 FROM extraction_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		if err := rows.Scan(&run.ID, &run.Kind, &run.Status, &run.FieldsUpdated, &run.Failures, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) Summary(ctx context.Context) ([]FieldSummary, error) {
	var out []FieldSummary
	for _, spec := range fieldspec.All() {
		srcCol := pgx.Identifier{spec.SourceColumn}.Sanitize()
		llmCol := pgx.Identifier{spec.ExtractedColumn}.Sanitize()
		valCol := pgx.Identifier{spec.ValidationColumn}.Sanitize()

		query := `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN ` + srcCol + ` IS NOT NULL AND TRIM(CAST(` + srcCol + ` AS TEXT)) != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ` + llmCol + ` IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ` + valCol + ` = 'matched' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ` + valCol + ` = 'unmatched' THEN 1 ELSE 0 END), 0)
			FROM confirmation_data`

		sum := FieldSummary{Field: spec.SourceColumn}
		err := s.pool.QueryRow(ctx, query).Scan(
			&sum.Total, &sum.Sourced, &sum.Extracted, &sum.Matched, &sum.Unmatched,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: summary for %s", spec.SourceColumn)
		}
		out = append(out, sum)
	}
	return out, nil
}
