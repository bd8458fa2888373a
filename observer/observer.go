// Package observer provides OTEL-based observability for maestro runs.
//
// It exposes an OTEL-backed maestro.Tracer, an instrumented Backend
// wrapper that records per-call spans and metrics, and an Init function
// wiring OTLP HTTP exporters for traces, metrics, and logs. Export
// targets are configured through the standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/avencia/maestro/observer"

// Instruments holds the OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Counters
	TokenUsage       metric.Int64Counter
	GenerateRequests metric.Int64Counter
	AgentRuns        metric.Int64Counter

	// Histograms
	GenerateDuration metric.Float64Histogram
	AgentDuration    metric.Float64Histogram
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP
// exporters. Returns the instruments and a shutdown function that must
// be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("maestro")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}
	return inst, shutdown, nil
}

// newInstruments creates the counters and histograms against the global
// providers.
func newInstruments() (*Instruments, error) {
	meter := otel.Meter(scopeName)

	tokenUsage, err := meter.Int64Counter("maestro.llm.tokens",
		metric.WithDescription("Token usage by direction (input/output)"))
	if err != nil {
		return nil, err
	}
	generateRequests, err := meter.Int64Counter("maestro.llm.requests",
		metric.WithDescription("Backend generate calls by status"))
	if err != nil {
		return nil, err
	}
	agentRuns, err := meter.Int64Counter("maestro.agent.runs",
		metric.WithDescription("Agent runs by status"))
	if err != nil {
		return nil, err
	}
	generateDuration, err := meter.Float64Histogram("maestro.llm.duration",
		metric.WithDescription("Backend generate latency"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	agentDuration, err := meter.Float64Histogram("maestro.agent.duration",
		metric.WithDescription("Agent run latency"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:           otel.Tracer(scopeName),
		Meter:            meter,
		TokenUsage:       tokenUsage,
		GenerateRequests: generateRequests,
		AgentRuns:        agentRuns,
		GenerateDuration: generateDuration,
		AgentDuration:    agentDuration,
	}, nil
}
