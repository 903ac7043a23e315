package runner

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records Runner throughput to OpenTelemetry: engines started and
// completed, verbs executed, years simulated, and failures by error kind.
type Metrics struct {
	meter metric.Meter
	once  sync.Once

	enginesStarted   metric.Int64Counter
	enginesSucceeded metric.Int64Counter
	enginesFailed    metric.Int64Counter
	verbsExecuted    metric.Int64Counter
	yearsSimulated   metric.Int64Counter
	engineDuration   metric.Float64Histogram
}

// NewMetrics constructs a Metrics recorder using the global MeterProvider.
func NewMetrics() *Metrics {
	return &Metrics{
		meter: otel.GetMeterProvider().Meter("mpsim/runner"),
	}
}

func (m *Metrics) init() {
	m.once.Do(func() {
		m.enginesStarted, _ = m.meter.Int64Counter("runner.engines.started")
		m.enginesSucceeded, _ = m.meter.Int64Counter("runner.engines.succeeded")
		m.enginesFailed, _ = m.meter.Int64Counter("runner.engines.failed")
		m.verbsExecuted, _ = m.meter.Int64Counter("runner.verbs.executed")
		m.yearsSimulated, _ = m.meter.Int64Counter("runner.years.simulated")
		m.engineDuration, _ = m.meter.Float64Histogram("runner.engine.duration_ms")
	})
}

// RecordEngineStart records that a (scenario, trial) engine began running.
func (m *Metrics) RecordEngineStart(ctx context.Context, scenario string) {
	if m == nil {
		return
	}
	m.init()
	if m.enginesStarted != nil {
		m.enginesStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("scenario", scenario)))
	}
}

// RecordEngineEnd records a (scenario, trial) engine's completion, its
// error kind ("" on success), and its total wall-clock duration.
func (m *Metrics) RecordEngineEnd(ctx context.Context, scenario string, errorKind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.init()
	attrs := metric.WithAttributes(attribute.String("scenario", scenario))
	if errorKind == "" {
		if m.enginesSucceeded != nil {
			m.enginesSucceeded.Add(ctx, 1, attrs)
		}
	} else {
		if m.enginesFailed != nil {
			m.enginesFailed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("scenario", scenario),
				attribute.String("error_kind", errorKind),
			))
		}
	}
	if m.engineDuration != nil {
		m.engineDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// RecordVerbs records how many verbs a year iteration applied.
func (m *Metrics) RecordVerbs(ctx context.Context, scenario string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.init()
	if m.verbsExecuted != nil {
		m.verbsExecuted.Add(ctx, int64(count), metric.WithAttributes(attribute.String("scenario", scenario)))
	}
}

// RecordYear records a simulated year completing for a (scenario, trial)
// engine.
func (m *Metrics) RecordYear(ctx context.Context, scenario string) {
	if m == nil {
		return
	}
	m.init()
	if m.yearsSimulated != nil {
		m.yearsSimulated.Add(ctx, 1, metric.WithAttributes(attribute.String("scenario", scenario)))
	}
}
