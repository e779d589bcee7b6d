package store

import (
	"context"

	"github.com/sells-group/confirm-cli/internal/model"
)

// Store defines the persistence interface for the confirmation pipeline.
// The pipeline writes only the extraction and validation columns; source
// columns are written once at import and never mutated afterwards.
type Store interface {
	// Records
	ListRecords(ctx context.Context) ([]model.Record, error)
	InsertRecord(ctx context.Context, row model.SourceRow) (int64, error)

	// SetExtractedValue writes the extracted value for a record-field pair
	// if and only if it is still unset. Returns false when another writer
	// got there first, which keeps extraction at-most-once per pair.
	SetExtractedValue(ctx context.Context, recordID int64, field model.Field, value string) (bool, error)

	// SetValidationStatus overwrites the pair's verdict unconditionally.
	SetValidationStatus(ctx context.Context, recordID int64, field model.Field, status model.ValidationStatus) error

	// Run audit
	CreateRun(ctx context.Context, kind model.RunKind) (string, error)
	CompleteRun(ctx context.Context, runID string, fieldsUpdated, failures int) error
	FailRun(ctx context.Context, runID string, message string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Reporting
	Summary(ctx context.Context) ([]FieldSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// FieldSummary aggregates one field's extraction and validation state across
// all records, for the status command and the reporting API.
type FieldSummary struct {
	Field     string `json:"field"`
	Total     int    `json:"total"`
	Sourced   int    `json:"sourced"`
	Extracted int    `json:"extracted"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
}

// Pending returns how many sourced pairs still await extraction.
func (s FieldSummary) Pending() int {
	return s.Sourced - s.Extracted
}
