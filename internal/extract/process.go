package extract

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/internal/resilience"
	"github.com/sells-group/confirm-cli/internal/store"
)

// semanticNullMarker is what a successful "not found" answer persists. It is
// non-NULL, so the pair counts as resolved and is never re-extracted, and it
// normalizes to absent, so validation yields unmatched.
const semanticNullMarker = ""

// Processor walks every record-field pair and fills unresolved extraction
// columns. Resume is driven entirely by the store: a pair is attempted only
// when its source is present and its extracted column is still NULL, and the
// store write is a compare-and-set, so each pair sees at most one successful
// extraction across the lifetime of a record.
type Processor struct {
	store       store.Store
	engine      *Engine
	breaker     *resilience.CircuitBreaker
	concurrency int
}

// ProcessorOpts configures the processor.
type ProcessorOpts struct {
	// Concurrency bounds how many records are processed at once. 1 gives
	// the strictly sequential reference behavior.
	Concurrency int
	Breaker     resilience.CircuitBreakerConfig
}

// NewProcessor creates a record processor.
func NewProcessor(st store.Store, engine *Engine, opts ProcessorOpts) *Processor {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	breakerCfg := opts.Breaker
	// Schema violations are response-content problems, not service health;
	// only transport-level failures should open the circuit.
	breakerCfg.ShouldTrip = func(err error) bool {
		return err != nil && !errors.Is(err, ErrSchemaViolation)
	}

	return &Processor{
		store:       st,
		engine:      engine,
		breaker:     resilience.NewCircuitBreaker(breakerCfg),
		concurrency: concurrency,
	}
}

// Run processes all records once and returns the number of fields updated.
// Per-pair failures are logged and left unresolved for the next run; they
// never abort processing of other pairs.
func (p *Processor) Run(ctx context.Context) (int, error) {
	records, err := p.store.ListRecords(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "process: list records")
	}

	runID, err := p.store.CreateRun(ctx, model.RunKindExtract)
	if err != nil {
		return 0, eris.Wrap(err, "process: create run")
	}

	var updated, failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			u, f := p.processRecord(ctx, rec)
			updated.Add(u)
			failures.Add(f)
			return nil
		})
	}
	_ = g.Wait()

	if err := p.store.CompleteRun(ctx, runID, int(updated.Load()), int(failures.Load())); err != nil {
		zap.L().Error("failed to complete run", zap.String("run_id", runID), zap.Error(err))
	}

	zap.L().Info("extraction run complete",
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
		zap.Int64("fields_updated", updated.Load()),
		zap.Int64("failures", failures.Load()),
	)
	return int(updated.Load()), nil
}

func (p *Processor) processRecord(ctx context.Context, rec *model.Record) (updated, failures int64) {
	log := zap.L().With(zap.Int64("record_id", rec.ID))

	for _, spec := range fieldspec.All() {
		if ctx.Err() != nil {
			return updated, failures
		}

		state := rec.Field(spec.Field)
		if !model.HasValue(state.Source) || state.Extracted != nil {
			continue
		}

		value, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (*string, error) {
			return p.engine.Extract(ctx, *state.Source, spec)
		})
		if err != nil {
			failures++
			switch {
			case errors.Is(err, resilience.ErrCircuitOpen):
				log.Warn("extraction skipped, circuit open", zap.String("field", spec.SourceColumn))
			case errors.Is(err, ErrSchemaViolation):
				log.Warn("extraction response rejected", zap.String("field", spec.SourceColumn), zap.Error(err))
			default:
				log.Warn("extraction call failed", zap.String("field", spec.SourceColumn), zap.Error(err))
			}
			continue
		}

		text := semanticNullMarker
		if value != nil {
			text = *value
		}

		wrote, err := p.store.SetExtractedValue(ctx, rec.ID, spec.Field, text)
		if err != nil {
			failures++
			log.Error("failed to persist extracted value", zap.String("field", spec.SourceColumn), zap.Error(err))
			continue
		}
		if !wrote {
			// Another worker resolved the pair first.
			log.Debug("extracted value already present", zap.String("field", spec.SourceColumn))
			continue
		}

		updated++
		log.Info("field extracted",
			zap.String("field", spec.SourceColumn),
			zap.String("column", spec.ExtractedColumn),
			zap.String("value", text),
		)
	}
	return updated, failures
}
