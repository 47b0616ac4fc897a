package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/logstream"

// Telemetry holds all OpenTelemetry instruments for logstream
// When no providers are configured, all instruments are noops with zero overhead
type Telemetry struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator

	// Tick metrics
	Ticks        metric.Int64Counter
	TickDuration metric.Float64Histogram

	// Partition pipeline metrics
	RecordsConsumed metric.Int64Counter
	RecordsWritten  metric.Int64Counter
	RecordsSkipped  metric.Int64Counter
	BytesWritten    metric.Int64Counter
	FetchDuration   metric.Float64Histogram
	ProcessDuration metric.Float64Histogram
	WriteDuration   metric.Float64Histogram

	// Error metrics
	ErrorHandlerActions metric.Int64Counter

	// Runner state metrics
	PartitionsActive metric.Int64UpDownCounter

	// Generator metrics
	RecordsGenerated metric.Int64Counter
	PutDuration      metric.Float64Histogram
}

// NewTelemetry creates a Telemetry instance from the given providers.
// all providers are optional and defaulted to noops if nil
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) (
	*Telemetry, error,
) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	meter := mp.Meter(scopeName)
	b := builder{meter: meter}

	tel := &Telemetry{
		Tracer:     tp.Tracer(scopeName),
		Propagator: prop,

		Ticks:        b.counter("logstream.ticks", "Ticks completed, by status"),
		TickDuration: b.histogram("logstream.tick.duration", "Wall time per tick"),

		RecordsConsumed: b.counter("logstream.records.consumed", "Raw entries fetched from the source"),
		RecordsWritten:  b.counter("logstream.records.written", "Transformed records written to the sink"),
		RecordsSkipped:  b.counter("logstream.records.skipped", "Entries skipped as malformed or untransformable"),
		BytesWritten:    b.counter("logstream.sink.bytes", "Serialized bytes handed to the sink"),
		FetchDuration:   b.histogram("logstream.fetch.duration", "Time per FetchBatch() call"),
		ProcessDuration: b.histogram("logstream.process.duration", "Time per ProcessBatch() call"),
		WriteDuration:   b.histogram("logstream.write.duration", "Time per WriteBatch() call"),

		ErrorHandlerActions: b.counter("logstream.error_handler.actions", "Error handler decisions"),

		PartitionsActive: b.upDownCounter("logstream.partitions.active", "Partitions owned by the runner"),

		RecordsGenerated: b.counter("logstream.generator.records", "Synthetic records emitted"),
		PutDuration:      b.histogram("logstream.generator.put.duration", "Time per PutRecord() call"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return tel, nil
}

// Noop returns a Telemetry instance with all noop instruments
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil, nil)
	return t
}

// builder keeps the first instrument creation error
type builder struct {
	meter metric.Meter
	err   error
}

func (b *builder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.keep(err)
	return c
}

func (b *builder) upDownCounter(name, desc string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.keep(err)
	return c
}

func (b *builder) histogram(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	b.keep(err)
	return h
}

func (b *builder) keep(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}
