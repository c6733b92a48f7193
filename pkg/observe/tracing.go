package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

const tracerName = "daedalus/workflow"

// TraceObserver opens an OpenTelemetry span per run and per stage, carrying
// run, node, and stage attributes. Spans nest through the contexts the
// engine threads between Started and Finished callbacks. Use
// tracing.Setup to install an exporting tracer provider.
type TraceObserver struct {
	tracer trace.Tracer
}

// NewTraceObserver creates a TraceObserver using the global tracer
// provider.
func NewTraceObserver() *TraceObserver {
	return &TraceObserver{tracer: otel.Tracer(tracerName)}
}

// RunStarted implements workflow.Observer.
func (o *TraceObserver) RunStarted(ctx context.Context, run workflow.RunInfo) context.Context {
	ctx, _ = o.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.run_id", run.RunID),
			attribute.String("workflow.flow", run.Flow),
		))
	return ctx
}

// RunFinished implements workflow.Observer.
func (o *TraceObserver) RunFinished(ctx context.Context, run workflow.RunInfo, action workflow.Action, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("workflow.action", string(action)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}
	span.End()
}

// StageStarted implements workflow.Observer.
func (o *TraceObserver) StageStarted(ctx context.Context, stage workflow.StageInfo) context.Context {
	attrs := []attribute.KeyValue{
		attribute.String("workflow.run_id", stage.Run.RunID),
		attribute.String("workflow.node", stage.Node),
		attribute.String("workflow.stage", string(stage.Stage)),
	}
	if stage.Run.Iteration >= 0 {
		attrs = append(attrs, attribute.Int("workflow.iteration", stage.Run.Iteration))
	}
	if stage.Item >= 0 {
		attrs = append(attrs, attribute.Int("workflow.item", stage.Item))
	}
	ctx, _ = o.tracer.Start(ctx, "node."+string(stage.Stage), trace.WithAttributes(attrs...))
	return ctx
}

// StageFinished implements workflow.Observer.
func (o *TraceObserver) StageFinished(ctx context.Context, stage workflow.StageInfo, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "stage completed")
	}
	span.End()
}
