package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/onnwee/whatnow"

// Stage names one step of a recommendation request.
type Stage string

const (
	StageFanOut  Stage = "fan_out"
	StageDedup   Stage = "dedup"
	StageProfile Stage = "profile"
	StageRank    Stage = "rank"
	StageFilter  Stage = "filter_truncate"
)

// StartSpan starts a span named name.
//
//	ctx, end := tracing.StartSpan(ctx, "recommend")
//	defer func() { end(err) }()
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, endFunc(span)
}

// StartStageSpan starts a span for a pipeline stage.
func StartStageSpan(ctx context.Context, stage Stage) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline."+string(stage),
		trace.WithAttributes(attribute.String("pipeline.stage", string(stage))),
	)
	return ctx, endFunc(span)
}

// StartProviderSpan starts a client span around one provider call.
func StartProviderSpan(ctx context.Context, provider string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provider.fetch "+provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider.name", provider)),
	)
	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
