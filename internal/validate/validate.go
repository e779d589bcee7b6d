// Package validate recomputes every record's per-field match verdict from the
// current source and extracted values. The pass is total: it overwrites any
// prior status and has no memory of previous runs.
package validate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/internal/normalize"
	"github.com/sells-group/confirm-cli/internal/store"
)

// Validator recomputes validation statuses for all records.
type Validator struct {
	store store.Store
}

// New creates a validator over the given store.
func New(st store.Store) *Validator {
	return &Validator{store: st}
}

// Verdict returns the match status for one record-field pair. A pair matches
// only when both normalized values are present and equal; everything else,
// including both values absent, is unmatched.
func Verdict(state *model.FieldState, norm fieldspec.Normalizer) model.ValidationStatus {
	var left, right normalize.Value
	switch norm {
	case fieldspec.NormSide:
		left = normalize.Side(state.Source)
		right = normalize.Side(state.Extracted)
	default:
		left = normalize.Generic(state.Source)
		right = normalize.Generic(state.Extracted)
	}

	if normalize.Equal(left, right) {
		return model.ValidationMatched
	}
	return model.ValidationUnmatched
}

// Run recomputes and persists the verdict for every record and every field.
func (v *Validator) Run(ctx context.Context) error {
	records, err := v.store.ListRecords(ctx)
	if err != nil {
		return eris.Wrap(err, "validate: list records")
	}

	runID, err := v.store.CreateRun(ctx, model.RunKindValidate)
	if err != nil {
		return eris.Wrap(err, "validate: create run")
	}

	updated := 0
	for i := range records {
		rec := &records[i]
		for _, spec := range fieldspec.All() {
			status := Verdict(rec.Field(spec.Field), spec.Normalizer)
			if err := v.store.SetValidationStatus(ctx, rec.ID, spec.Field, status); err != nil {
				_ = v.store.FailRun(ctx, runID, err.Error())
				return eris.Wrapf(err, "validate: record %d field %s", rec.ID, spec.SourceColumn)
			}
			updated++
		}
	}

	if err := v.store.CompleteRun(ctx, runID, updated, 0); err != nil {
		zap.L().Error("failed to complete run", zap.String("run_id", runID), zap.Error(err))
	}

	zap.L().Info("validation run complete",
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
		zap.Int("statuses_written", updated),
	)
	return nil
}
