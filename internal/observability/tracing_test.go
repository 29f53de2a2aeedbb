package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"deckforge/internal/adapters/config"
	"deckforge/pkg/errors"
)

func TestSpansRecordOutcome(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, ok := StartSpan(context.Background(), "pipeline.normalize")
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), "pipeline.research")
	EndSpan(failed, errors.ErrSearchFailure)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "pipeline.normalize", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Len(t, spans[1].Events(), 1)
}

func TestDisabledTracingIsNoop(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tp, err := NewTracerProvider(context.Background(), config.TracingConfig{}, config.AppConfig{Name: "deckforge"})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	_, span := StartSpan(context.Background(), "x")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}
