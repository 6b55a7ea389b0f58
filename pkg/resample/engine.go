package resample

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tickfold/tickfold/pkg/logger"
	"github.com/tickfold/tickfold/pkg/metrics"
	"github.com/tickfold/tickfold/pkg/observability"
	"github.com/tickfold/tickfold/pkg/segment"
)

// Engine evaluates resample requests. It holds no cross-invocation state;
// every call owns its bucket plan and accumulators exclusively and relies
// on nothing beyond the explicit request parameters.
type Engine struct {
	log *zap.Logger
}

// EngineConfig configures the engine's ambient concerns.
type EngineConfig struct {
	// Logger overrides the global logger, e.g. with zaptest in tests
	Logger *zap.Logger
}

// NewEngine creates an engine
func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	return &Engine{log: log}
}

// Resample runs one invocation: plan buckets, fold the source's segments,
// promote dtypes, suppress empty buckets and assemble the output table.
// Errors are terminal and synchronous; no partial output is returned.
func (e *Engine) Resample(ctx context.Context, source segment.Source, req Request) (*Table, error) {
	invocation := observability.NewInvocationID()
	ctx, span := observability.StartSpan(ctx, "resample",
		attribute.String("symbol", req.Symbol),
		attribute.String("rule", req.Rule),
		attribute.String("invocation_id", invocation),
	)
	defer span.End()

	metrics.ActiveResamples.Inc()
	defer metrics.ActiveResamples.Dec()
	timer := metrics.NewTimer("resample")

	table, err := e.resample(ctx, source, req)
	metrics.ResampleDuration.Observe(float64(timer.Stop().Nanoseconds()))
	if err != nil {
		metrics.ResamplesTotal.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("resample failed",
			zap.String("invocation_id", invocation),
			zap.String("symbol", req.Symbol),
			zap.String("rule", req.Rule),
			zap.Error(err))
		return nil, err
	}

	metrics.ResamplesTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("buckets", table.Rows()))
	e.log.Info("resample complete",
		zap.String("invocation_id", invocation),
		zap.String("symbol", req.Symbol),
		zap.String("rule", req.Rule),
		zap.Int("buckets", table.Rows()),
		zap.Duration("elapsed", timer.Stop()))
	return table, nil
}

func (e *Engine) resample(ctx context.Context, source segment.Source, req Request) (*Table, error) {
	r, err := resolve(req)
	if err != nil {
		return nil, err
	}

	full, hasData := source.FullRange()
	p, err := plan(r, full, hasData, req.DateRange)
	if err != nil {
		return nil, err
	}
	metrics.BucketsPlanned.Add(float64(p.NumBuckets()))
	e.log.Debug("plan computed",
		zap.String("symbol", req.Symbol),
		zap.Int("buckets", p.NumBuckets()),
		zap.Bool("has_data", hasData))

	f := newFolder(p, r.specs)
	if p.NumBuckets() > 0 {
		if err := f.fold(ctx, source); err != nil {
			return nil, err
		}
		e.log.Debug("fold complete",
			zap.String("symbol", req.Symbol),
			zap.Int("segments", f.segments))
	}

	return assemble(f)
}
