// Package telemetry wires OpenTelemetry tracing and metrics for load runs.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName scopes the tracer and meter.
const InstrumentationName = "github.com/justestif/go-sparkify-etl"

// Metric names.
const (
	RowsMetric  = "sparkify.rows.written"
	FilesMetric = "sparkify.files.processed"
)

// Telemetry holds the tracer and instruments used by the pipeline.
type Telemetry struct {
	tracer trace.Tracer
	rows   metric.Int64Counter
	files  metric.Int64Counter
}

// New creates instruments from the given providers.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	meter := mp.Meter(InstrumentationName)

	rows, err := meter.Int64Counter(RowsMetric,
		metric.WithDescription("Rows written per table"),
		metric.WithUnit("{row}"))
	if err != nil {
		return nil, fmt.Errorf("creating rows counter: %w", err)
	}

	files, err := meter.Int64Counter(FilesMetric,
		metric.WithDescription("Input files processed, by kind and outcome"),
		metric.WithUnit("{file}"))
	if err != nil {
		return nil, fmt.Errorf("creating files counter: %w", err)
	}

	return &Telemetry{
		tracer: tp.Tracer(InstrumentationName),
		rows:   rows,
		files:  files,
	}, nil
}

// Noop returns a Telemetry that records nothing.
func Noop() *Telemetry {
	t, err := New(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		// noop instruments never fail
		panic(err)
	}
	return t
}

// Start opens a span.
func (t *Telemetry) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddRows records n rows written to table.
func (t *Telemetry) AddRows(ctx context.Context, table string, n int64) {
	if n == 0 {
		return
	}
	t.rows.Add(ctx, n, metric.WithAttributes(attribute.String("table", table)))
}

// AddFile records one processed file.
func (t *Telemetry) AddFile(ctx context.Context, kind string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	t.files.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// Setup exports traces and metrics over OTLP/gRPC to endpoint (host:port).
// An empty endpoint disables export. The returned function flushes and stops
// the exporters.
func Setup(ctx context.Context, endpoint, serviceName string) (*Telemetry, func(context.Context) error, error) {
	if endpoint == "" {
		return Noop(), func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("building resource: %w", err)
	}

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure())
	if err != nil {
		_ = traceExp.Shutdown(ctx)
		return nil, nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res))

	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	t, err := New(tp, mp)
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	return t, shutdown, nil
}
