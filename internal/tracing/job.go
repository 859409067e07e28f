package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// JobCarrier is the W3C trace context carried on a queued job payload so
// the worker span joins the API request that created the job.
type JobCarrier struct {
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

var _ propagation.TextMapCarrier = (*JobCarrier)(nil)

func (c *JobCarrier) Get(key string) string {
	switch key {
	case "traceparent":
		return c.TraceParent
	case "tracestate":
		return c.TraceState
	}
	return ""
}

func (c *JobCarrier) Set(key, value string) {
	switch key {
	case "traceparent":
		c.TraceParent = value
	case "tracestate":
		c.TraceState = value
	}
}

func (c *JobCarrier) Keys() []string {
	return []string{"traceparent", "tracestate"}
}

// Inject captures the span in ctx. The result is empty when ctx carries no
// sampled span.
func Inject(ctx context.Context) JobCarrier {
	var c JobCarrier
	propagation.TraceContext{}.Inject(ctx, &c)
	return c
}

// Extract returns ctx with the remote span from c as parent.
func Extract(ctx context.Context, c JobCarrier) context.Context {
	if c.TraceParent == "" {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, &c)
}

func jobAttributes(kind, queueType, jobID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("job.kind", kind),
		attribute.String("job.queue_type", queueType),
	}
	if jobID != "" {
		attrs = append(attrs, attribute.String("job.id", jobID))
	}
	return attrs
}

// StartJobSpan opens the consumer span around one handler run.
func StartJobSpan(ctx context.Context, kind, queueType, jobID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "job.run "+kind,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(jobAttributes(kind, queueType, jobID)...),
	)
}

func StartJobEnqueueSpan(ctx context.Context, kind, queueType, jobID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "job.enqueue "+kind,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(jobAttributes(kind, queueType, jobID)...),
	)
}
