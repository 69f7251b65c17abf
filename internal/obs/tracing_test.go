package obs

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerExporterChoice(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracer(context.Background(), TracingConfig{Exporter: "jaeger"})
	require.Error(t, err)
}

func TestSamplingRatioClamps(t *testing.T) {
	require.Equal(t, 1.0, samplingRatio(0))
	require.Equal(t, 1.0, samplingRatio(3))
	require.Equal(t, 0.25, samplingRatio(0.25))
}

func TestPGXTracerTagsCollection(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tracer := PGXTracer{}
	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL:  "\n  select id, data\n  FROM records WHERE collection = $1",
		Args: []any{"bookings"},
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "pgx SELECT", spans[0].Name)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "bookings", attrs["freight.collection"])
	require.Equal(t, "select id, data FROM records WHERE collection = $1", attrs["db.statement"])
}
