package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/roost/flow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/casualjim/roost/flow"

var _ flow.Hook = (*Tracing)(nil)

// Tracing opens a span per flow run and a child span per step execution.
type Tracing struct {
	tracer trace.Tracer
	runs   *haxmap.Map[string, trace.Span]
	steps  *haxmap.Map[string, trace.Span]
}

func NewTracing(tp trace.TracerProvider) *Tracing {
	return &Tracing{
		tracer: tp.Tracer(instrumentationName),
		runs:   haxmap.New[string, trace.Span](),
		steps:  haxmap.New[string, trace.Span](),
	}
}

func stepKey(run fmt.Stringer, step string, invocation int) string {
	return fmt.Sprintf("%s/%s/%d", run, step, invocation)
}

func (t *Tracing) take(m *haxmap.Map[string, trace.Span], key string) (trace.Span, bool) {
	span, ok := m.Get(key)
	if ok {
		m.Del(key)
	}
	return span, ok
}

func (t *Tracing) OnEvent(ctx context.Context, ev flow.Event) {
	switch e := ev.(type) {
	case flow.FlowStarted:
		_, span := t.tracer.Start(ctx, "flow "+e.Flow,
			trace.WithAttributes(
				attribute.String("flow.name", e.Flow),
				attribute.String("flow.run_id", e.RunID.String()),
			),
		)
		t.runs.Set(e.RunID.String(), span)

	case flow.StepStarted:
		parent := ctx
		if run, ok := t.runs.Get(e.RunID.String()); ok {
			parent = trace.ContextWithSpan(ctx, run)
		}
		_, span := t.tracer.Start(parent, "step "+e.Step,
			trace.WithAttributes(
				attribute.String("flow.name", e.Flow),
				attribute.String("flow.step", e.Step),
				attribute.Int("flow.invocation", e.Invocation),
			),
		)
		t.steps.Set(stepKey(e.RunID, e.Step, e.Invocation), span)

	case flow.StepCompleted:
		key := stepKey(e.RunID, e.Step, e.Invocation)
		if span, ok := t.take(t.steps, key); ok {
			span.SetAttributes(attribute.Int("flow.delta_fields", len(e.Delta)))
			span.SetStatus(codes.Ok, "")
			span.End()
		}

	case flow.StepFailed:
		key := stepKey(e.RunID, e.Step, e.Invocation)
		if span, ok := t.take(t.steps, key); ok {
			span.RecordError(fmt.Errorf("%s", e.Error))
			span.SetStatus(codes.Error, e.Error)
			span.End()
		}

	case flow.Routed:
		if run, ok := t.runs.Get(e.RunID.String()); ok {
			run.AddEvent("routed", trace.WithAttributes(
				attribute.String("flow.router", e.Router),
				attribute.String("flow.label", e.Label),
				attribute.String("flow.destination", e.Destination),
				attribute.Bool("flow.terminate", e.Terminate),
			))
		}

	case flow.FlowFinished:
		if run, ok := t.take(t.runs, e.RunID.String()); ok {
			run.SetAttributes(attribute.Int("flow.passes", e.Passes))
			run.SetStatus(codes.Ok, "")
			run.End()
		}

	case flow.FlowFailed:
		if run, ok := t.take(t.runs, e.RunID.String()); ok {
			if e.Step != "" {
				run.SetAttributes(attribute.String("flow.failed_step", e.Step))
			}
			run.SetStatus(codes.Error, e.Error)
			run.End()
		}
	}
}

// StdoutProvider builds a tracer provider that writes finished spans as JSON
// to w. Callers own the provider and must Shutdown it.
func StdoutProvider(ctx context.Context, w io.Writer, serviceName, serviceVersion string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("stdout exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}
