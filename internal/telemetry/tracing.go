package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pdevo/internal/model"
)

const tracerName = "pdevo.platform"

// The tracer is resolved per call so a provider installed after package
// init is still honoured.
func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func StartRunSpan(ctx context.Context, runID string, size int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("pdevo.run_id", runID),
			attribute.Int("pdevo.population_size", size),
		),
	)
}

func StartGenerationSpan(ctx context.Context, runID string, generation int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "Engine.DoGeneration",
		trace.WithAttributes(
			attribute.String("pdevo.run_id", runID),
			attribute.Int("pdevo.generation", generation),
		),
	)
}

// EndGenerationSpan records the outcome and ends span.
func EndGenerationSpan(span trace.Span, report model.GenerationReport, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("pdevo.games", report.Games),
		attribute.Int("pdevo.rounds", report.Rounds),
		attribute.Float64("pdevo.best_score", report.BestScore),
		attribute.String("pdevo.best_kind", report.BestKind),
		attribute.Int("pdevo.culled", report.Culled),
		attribute.Int("pdevo.born", report.Born),
	)
}
