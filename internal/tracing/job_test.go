package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := tracer
	tracer = tp.Tracer("test")
	t.Cleanup(func() {
		tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestStartJobSpan_Attributes(t *testing.T) {
	rec := useRecorder(t)

	_, span := StartJobSpan(context.Background(), "EXPORT", "media:export", "7d3c")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "job.run EXPORT", ended[0].Name())
	assert.Equal(t, trace.SpanKindConsumer, ended[0].SpanKind())
	assert.Equal(t, map[string]string{
		"job.kind":       "EXPORT",
		"job.queue_type": "media:export",
		"job.id":         "7d3c",
	}, attrMap(ended[0].Attributes()))
}

func TestJobCarrier_RoundTrip(t *testing.T) {
	rec := useRecorder(t)

	ctx, parent := StartJobEnqueueSpan(context.Background(), "LOOP", "media:loop", "abc")
	carrier := Inject(ctx)
	parent.End()
	require.NotEmpty(t, carrier.TraceParent)

	_, child := StartJobSpan(Extract(context.Background(), carrier), "LOOP", "media:loop", "abc")
	child.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, ended[0].SpanContext().TraceID(), ended[1].SpanContext().TraceID())
	assert.Equal(t, ended[0].SpanContext().SpanID(), ended[1].Parent().SpanID())
}

func TestExtract_EmptyCarrier(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, Extract(ctx, JobCarrier{}))
}

func TestRouteName(t *testing.T) {
	assert.Equal(t, "/v1/clips/{jobId}/status", RouteName("/v1/clips/0b6f1c3e-6a0f-4d84-9f3a-2f2d51c4e8a1/status"))
	assert.Equal(t, "/v1/loops/history", RouteName("/v1/loops/history"))
}
