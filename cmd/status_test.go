package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/internal/store"
)

func TestFormatSummary(t *testing.T) {
	var sb strings.Builder
	formatSummary(&sb, []store.FieldSummary{
		{Field: "currency", Total: 10, Sourced: 8, Extracted: 6, Matched: 5, Unmatched: 1},
		{Field: "SSI", Total: 10, Sourced: 2, Extracted: 0},
	})

	out := sb.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "FIELD")
	assert.Contains(t, lines[0], "PENDING")
	assert.Contains(t, lines[2], "currency")
	// Pending is derived: sourced minus extracted.
	assert.Regexp(t, `currency\s+8\s+6\s+2\s+5\s+1`, lines[2])
	assert.Regexp(t, `SSI\s+2\s+0\s+2\s+0\s+0`, lines[3])
}

func TestFormatRuns(t *testing.T) {
	started := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)

	var sb strings.Builder
	formatRuns(&sb, []model.Run{
		{
			ID:            "0a1b2c3d-0000-0000-0000-000000000000",
			Kind:          model.RunKindExtract,
			Status:        model.RunStatusComplete,
			FieldsUpdated: 12,
			Failures:      2,
			StartedAt:     started,
			FinishedAt:    &finished,
		},
		{
			ID:        "ffeeddcc-0000-0000-0000-000000000000",
			Kind:      model.RunKindValidate,
			Status:    model.RunStatusRunning,
			StartedAt: started,
		},
	})

	out := sb.String()
	assert.Contains(t, out, "0a1b2c3d")
	assert.NotContains(t, out, "0a1b2c3d-")
	assert.Contains(t, out, "extract")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "2026-08-30 14:00:00")
	// Unfinished run shows a placeholder duration.
	assert.Regexp(t, `validate\s+running\s+\S+ \S+\s+-`, out)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0a1b2c3d", shortID("0a1b2c3d-0000"))
	assert.Equal(t, "short", shortID("short"))
}

func TestRecordsToJSON(t *testing.T) {
	usd := "USD"
	rec := model.Record{ID: 7, CreationDate: time.Now()}
	rec.Currency = model.FieldState{Source: &usd, Extracted: &usd, Status: model.ValidationMatched}

	out := recordsToJSON([]model.Record{rec})
	require.Len(t, out, 1)
	require.Len(t, out[0].Fields, 6)

	cur := out[0].Fields["currency"]
	require.NotNil(t, cur.Source)
	assert.Equal(t, "USD", *cur.Source)
	assert.Equal(t, "matched", cur.Validation)

	ssi := out[0].Fields["SSI"]
	assert.Nil(t, ssi.Source)
	assert.Nil(t, ssi.Extracted)
	assert.Empty(t, ssi.Validation)
}
