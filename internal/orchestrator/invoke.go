package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/breaker"
	"github.com/dusk-indust/stratagen/internal/logging"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// invoke performs one provider call for section: progress events, a span,
// validation at the boundary, the optional breaker, ledger and metrics. The
// validated payload is returned; failures are returned unlogged so callers
// can decide between error and warning.
func invoke[T any](
	ctx context.Context,
	r *run,
	phase Phase,
	section string,
	guard *breaker.Breaker,
	call func(context.Context) (strategy.ProviderResult[T], error),
) (T, error) {
	r.emit(ProgressEvent{Phase: phase, Section: section, Status: ProgressStarting})

	ctx, span := r.p.opts.tracer.Start(ctx, "stratagen."+section,
		trace.WithAttributes(
			attribute.String("stratagen.run_id", r.id),
			attribute.Int("stratagen.phase", int(phase)),
			attribute.String("stratagen.section", section),
		))
	defer span.End()

	validated := func(ctx context.Context) (strategy.ProviderResult[T], error) {
		res, err := call(ctx)
		if err != nil {
			return res, err
		}
		if err := res.Validate(); err != nil {
			return res, err
		}
		return res, nil
	}

	start := time.Now()
	var (
		res strategy.ProviderResult[T]
		err error
	)
	if guard != nil {
		res, err = breaker.Do(ctx, guard, validated)
	} else {
		res, err = validated(ctx)
	}
	elapsed := time.Since(start)

	stat := SectionStat{
		Elapsed:    elapsed,
		Cost:       res.Cost,
		Usage:      res.Usage,
		ProviderID: res.ProviderID,
		Outcome:    "success",
	}
	if err != nil {
		stat.Outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	r.ledger.Record(section, stat)
	r.p.opts.metrics.ObserveSection(section, stat.Outcome, elapsed, res.Cost)
	span.SetAttributes(attribute.Float64("stratagen.cost", res.Cost))

	if err != nil {
		r.emit(ProgressEvent{Phase: phase, Section: section, Status: ProgressError, Message: err.Error()})
		var zero T
		return zero, err
	}

	r.p.opts.logger.Info("pipeline: phase complete",
		append(logging.ContextFields(ctx),
			zap.String("section", section),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Float64("cost", res.Cost),
		)...)
	r.emit(ProgressEvent{Phase: phase, Section: section, Status: ProgressComplete, Data: res.Data})
	return res.Data, nil
}
