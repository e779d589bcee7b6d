package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/internal/normalize"
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
CREATE TABLE IF NOT EXISTS confirmation_data (
	id                             INTEGER PRIMARY KEY AUTOINCREMENT,
	currency                       TEXT,
	currency_LLM                   TEXT,
	currency_validation            TEXT,
	settlement_amount              REAL,
	settlement_amount_LLM          TEXT,
	settlement_amount_validation   TEXT,
	buy_sell                       TEXT,
	buy_sell_LLM                   TEXT,
	buy_sell_validation            TEXT,
	isin                           TEXT,
	isin_LLM                       TEXT,
	isin_validation                TEXT,
	settlement_date                TEXT,
	settlement_date_LLM            TEXT,
	settlement_date_validation     TEXT,
	SSI                            TEXT,
	SSI_LLM                        TEXT,
	SSI_validation                 TEXT,
	creation_date                  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extraction_runs (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	fields_updated INTEGER NOT NULL DEFAULT 0,
	failures       INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_extraction_runs_started_at ON extraction_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, creation_date,
	currency, currency_LLM, currency_validation,
	settlement_amount, settlement_amount_LLM, settlement_amount_validation,
	buy_sell, buy_sell_LLM, buy_sell_validation,
	isin, isin_LLM, isin_validation,
	settlement_date, settlement_date_LLM, settlement_date_validation,
	SSI, SSI_LLM, SSI_validation`

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM confirmation_data ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

// scanRecord builds the typed Record at the store boundary. The numeric
// settlement amount source column is canonicalized to text here so the rest
// of the pipeline only ever sees strings.
func scanRecord(rows *sql.Rows) (model.Record, error) {
	var (
		rec    model.Record
		amount sql.NullFloat64

		src = make([]sql.NullString, 6)
		llm = make([]sql.NullString, 6)
		val = make([]sql.NullString, 6)
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

	if amount.Valid {
		text := normalize.Amount(amount.Float64)
		src[1] = sql.NullString{String: text, Valid: true}
	}

	for i, f := range model.AllFields() {
		state := rec.Field(f)
		if src[i].Valid {
			v := src[i].String
			state.Source = &v
		}
		if llm[i].Valid {
			v := llm[i].String
			state.Extracted = &v
		}
		if val[i].Valid {
			state.Status = model.ValidationStatus(val[i].String)
		}
	}
	return rec, nil
}

func (s *SQLiteStore) InsertRecord(ctx context.Context, row model.SourceRow) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO confirmation_data (currency, settlement_amount, buy_sell, isin, settlement_date, SSI)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ptrArg(row.Currency), floatArg(row.SettlementAmount), ptrArg(row.BuySell),
		ptrArg(row.ISIN), ptrArg(row.SettlementDate), ptrArg(row.SSI),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert record")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return id, nil
}

func (s *SQLiteStore) SetExtractedValue(ctx context.Context, recordID int64, field model.Field, value string) (bool, error) {
	col := fieldspec.For(field).ExtractedColumn
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE confirmation_data SET %s = ? WHERE id = ? AND %s IS NULL`, col, col),
		value, recordID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: set %s for record %d", col, recordID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) SetValidationStatus(ctx context.Context, recordID int64, field model.Field, status model.ValidationStatus) error {
	col := fieldspec.For(field).ValidationColumn
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE confirmation_data SET %s = ? WHERE id = ?`, col),
		string(status), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set %s for record %d", col, recordID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: record %d not found", recordID)
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind model.RunKind) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create run")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, fieldsUpdated, failures int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs SET status = ?, fields_updated = ?, failures = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), fieldsUpdated, failures, time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: complete run %s", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: fail run %s", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, fields_updated, failures, started_at, finished_at
		 FROM extraction_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			run      model.Run
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.Kind, &run.Status, &run.FieldsUpdated, &run.Failures, &run.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) Summary(ctx context.Context) ([]FieldSummary, error) {
	var out []FieldSummary
	for _, spec := range fieldspec.All() {
		query := fmt.Sprintf(`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN %[1]s IS NOT NULL AND TRIM(CAST(%[1]s AS TEXT)) != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN %[2]s IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN %[3]s = 'matched' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN %[3]s = 'unmatched' THEN 1 ELSE 0 END), 0)
			FROM confirmation_data`,
			spec.SourceColumn, spec.ExtractedColumn, spec.ValidationColumn)

		sum := FieldSummary{Field: spec.SourceColumn}
		err := s.db.QueryRowContext(ctx, query).Scan(
			&sum.Total, &sum.Sourced, &sum.Extracted, &sum.Matched, &sum.Unmatched,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: summary for %s", spec.SourceColumn)
		}
		out = append(out, sum)
	}
	return out, nil
}

func ptrArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
