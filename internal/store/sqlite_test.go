package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/confirm-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "confirm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptr[T any](v T) *T { return &v }

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_InsertAndListRecords(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.InsertRecord(ctx, model.SourceRow{
		Currency:         ptr("USD"),
		SettlementAmount: ptr(-1250.50),
		BuySell:          ptr("BUY"),
		ISIN:             ptr("US9127123213"),
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, id, rec.ID)
	assert.False(t, rec.CreationDate.IsZero())

	require.NotNil(t, rec.Currency.Source)
	assert.Equal(t, "USD", *rec.Currency.Source)
	// REAL source column comes back in canonical text form.
	require.NotNil(t, rec.SettlementAmount.Source)
	assert.Equal(t, "-1250.5", *rec.SettlementAmount.Source)

	assert.Nil(t, rec.SettlementDate.Source)
	assert.Nil(t, rec.SSI.Source)
	for _, f := range model.AllFields() {
		state := rec.Field(f)
		assert.Nil(t, state.Extracted)
		assert.Equal(t, model.ValidationPending, state.Status)
	}
}

func TestSQLite_ListRecordsOrderedByID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("USD")})
	require.NoError(t, err)
	second, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("EUR")})
	require.NoError(t, err)

	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].ID)
	assert.Equal(t, second, records[1].ID)
}

func TestSQLite_SetExtractedValueIsWriteOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("USD")})
	require.NoError(t, err)

	wrote, err := st.SetExtractedValue(ctx, id, model.FieldCurrency, "USD")
	require.NoError(t, err)
	assert.True(t, wrote)

	// Second write loses the race and leaves the first value in place.
	wrote, err = st.SetExtractedValue(ctx, id, model.FieldCurrency, "EUR")
	require.NoError(t, err)
	assert.False(t, wrote)

	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	require.NotNil(t, records[0].Currency.Extracted)
	assert.Equal(t, "USD", *records[0].Currency.Extracted)
}

func TestSQLite_SemanticNullOccupiesTheColumn(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("unknown")})
	require.NoError(t, err)

	wrote, err := st.SetExtractedValue(ctx, id, model.FieldCurrency, "")
	require.NoError(t, err)
	assert.True(t, wrote)

	// The empty marker is non-NULL, so later writes are refused.
	wrote, err = st.SetExtractedValue(ctx, id, model.FieldCurrency, "USD")
	require.NoError(t, err)
	assert.False(t, wrote)

	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	require.NotNil(t, records[0].Currency.Extracted)
	assert.Equal(t, "", *records[0].Currency.Extracted)
}

func TestSQLite_SetValidationStatusOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("USD")})
	require.NoError(t, err)

	require.NoError(t, st.SetValidationStatus(ctx, id, model.FieldCurrency, model.ValidationUnmatched))
	require.NoError(t, st.SetValidationStatus(ctx, id, model.FieldCurrency, model.ValidationMatched))

	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationMatched, records[0].Currency.Status)
}

func TestSQLite_SetValidationStatusUnknownRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.SetValidationStatus(context.Background(), 9999, model.FieldCurrency, model.ValidationMatched)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	runID, err := st.CreateRun(ctx, model.RunKindExtract)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)

	require.NoError(t, st.CompleteRun(ctx, runID, 12, 2))

	runs, err = st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 12, runs[0].FieldsUpdated)
	assert.Equal(t, 2, runs[0].Failures)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	runID, err := st.CreateRun(ctx, model.RunKindValidate)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, runID, "store unavailable"))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestSQLite_Summary(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("USD")})
	require.NoError(t, err)
	b, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("EUR")})
	require.NoError(t, err)
	_, err = st.InsertRecord(ctx, model.SourceRow{ISIN: ptr("US9127123213")})
	require.NoError(t, err)

	wrote, err := st.SetExtractedValue(ctx, a, model.FieldCurrency, "USD")
	require.NoError(t, err)
	require.True(t, wrote)
	require.NoError(t, st.SetValidationStatus(ctx, a, model.FieldCurrency, model.ValidationMatched))
	require.NoError(t, st.SetValidationStatus(ctx, b, model.FieldCurrency, model.ValidationUnmatched))

	summary, err := st.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 6)

	byField := make(map[string]FieldSummary, len(summary))
	for _, s := range summary {
		byField[s.Field] = s
	}

	cur := byField["currency"]
	assert.Equal(t, 3, cur.Total)
	assert.Equal(t, 2, cur.Sourced)
	assert.Equal(t, 1, cur.Extracted)
	assert.Equal(t, 1, cur.Matched)
	assert.Equal(t, 1, cur.Unmatched)
	assert.Equal(t, 1, cur.Pending())

	isin := byField["isin"]
	assert.Equal(t, 3, isin.Total)
	assert.Equal(t, 1, isin.Sourced)
	assert.Zero(t, isin.Extracted)
}
