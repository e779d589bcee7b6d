package validate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "confirm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptr[T any](v T) *T { return &v }

func TestVerdict_Generic(t *testing.T) {
	tests := []struct {
		name      string
		source    *string
		extracted *string
		want      model.ValidationStatus
	}{
		{"exact match", ptr("USD"), ptr("USD"), model.ValidationMatched},
		{"whitespace ignored", ptr("  USD "), ptr("USD"), model.ValidationMatched},
		{"case sensitive", ptr("usd"), ptr("USD"), model.ValidationUnmatched},
		{"different values", ptr("USD"), ptr("EUR"), model.ValidationUnmatched},
		{"extracted missing", ptr("USD"), nil, model.ValidationUnmatched},
		{"source missing", nil, ptr("USD"), model.ValidationUnmatched},
		{"both missing", nil, nil, model.ValidationUnmatched},
		{"semantic null never matches", ptr("unknown"), ptr(""), model.ValidationUnmatched},
		{"blank source, blank extracted", ptr("   "), ptr(""), model.ValidationUnmatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &model.FieldState{Source: tt.source, Extracted: tt.extracted}
			assert.Equal(t, tt.want, Verdict(state, fieldspec.NormGeneric))
		})
	}
}

func TestVerdict_Side(t *testing.T) {
	tests := []struct {
		name      string
		source    *string
		extracted *string
		want      model.ValidationStatus
	}{
		{"canonical", ptr("buy"), ptr("buy"), model.ValidationMatched},
		{"case folded", ptr("BUY"), ptr("buy"), model.ValidationMatched},
		{"synonym b", ptr("B"), ptr("BUY"), model.ValidationMatched},
		{"synonym purchase", ptr("purchase"), ptr("BUY"), model.ValidationMatched},
		{"synonym s", ptr("S"), ptr("SELL"), model.ValidationMatched},
		{"synonym short", ptr("short"), ptr("SELL"), model.ValidationMatched},
		{"opposite sides", ptr("BUY"), ptr("SELL"), model.ValidationUnmatched},
		{"unknown token passes through", ptr("HOLD"), ptr("hold"), model.ValidationMatched},
		{"absent extracted", ptr("BUY"), nil, model.ValidationUnmatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &model.FieldState{Source: tt.source, Extracted: tt.extracted}
			assert.Equal(t, tt.want, Verdict(state, fieldspec.NormSide))
		})
	}
}

func TestVerdict_AmountRoundTrip(t *testing.T) {
	// Source amounts are canonicalized at the store boundary, so a correct
	// extraction compares equal textually.
	state := &model.FieldState{Source: ptr("-1250.5"), Extracted: ptr("-1250.5")}
	assert.Equal(t, model.ValidationMatched, Verdict(state, fieldspec.NormGeneric))
}

func TestValidatorRun_IsTotal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertRecord(ctx, model.SourceRow{
		Currency: ptr("USD"),
		BuySell:  ptr("B"),
		ISIN:     ptr("US9127123213"),
	})
	require.NoError(t, err)
	wrote, err := st.SetExtractedValue(ctx, id, model.FieldCurrency, "USD")
	require.NoError(t, err)
	require.True(t, wrote)
	wrote, err = st.SetExtractedValue(ctx, id, model.FieldBuySell, "BUY")
	require.NoError(t, err)
	require.True(t, wrote)

	require.NoError(t, New(st).Run(ctx))

	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, model.ValidationMatched, rec.Currency.Status)
	assert.Equal(t, model.ValidationMatched, rec.BuySell.Status)
	// Sourced but not extracted, and fully absent pairs, both get a verdict.
	assert.Equal(t, model.ValidationUnmatched, rec.ISIN.Status)
	assert.Equal(t, model.ValidationUnmatched, rec.SSI.Status)
	assert.Equal(t, model.ValidationUnmatched, rec.SettlementAmount.Status)
	assert.Equal(t, model.ValidationUnmatched, rec.SettlementDate.Status)
}

func TestValidatorRun_OverwritesPriorVerdict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("USD")})
	require.NoError(t, err)

	require.NoError(t, New(st).Run(ctx))
	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, model.ValidationUnmatched, records[0].Currency.Status)

	// Extraction lands between validation passes; rerun flips the verdict.
	wrote, err := st.SetExtractedValue(ctx, id, model.FieldCurrency, "USD")
	require.NoError(t, err)
	require.True(t, wrote)

	require.NoError(t, New(st).Run(ctx))
	records, err = st.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationMatched, records[0].Currency.Status)
}

func TestValidatorRun_RecordsRunAudit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertRecord(ctx, model.SourceRow{Currency: ptr("USD")})
	require.NoError(t, err)

	require.NoError(t, New(st).Run(ctx))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunKindValidate, runs[0].Kind)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 6, runs[0].FieldsUpdated)
}
