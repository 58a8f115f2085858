// Package observe records render and analysis telemetry through the
// OpenTelemetry metrics API. InitProvider bridges it to a Prometheus
// /metrics endpoint; tests build Metrics on a ManualReader instead.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "karolbroda.com/lyricmotion"

// Metrics holds every instrument. Safe for concurrent use.
type Metrics struct {
	// FramesRendered counts frames handed to an encoder.
	FramesRendered metric.Int64Counter

	// Exports counts finished exports by attribute.String("status", ...).
	Exports metric.Int64Counter

	ExportDuration   metric.Float64Histogram
	AnalysisDuration metric.Float64Histogram

	// ActiveExports is 0 or 1 per session.
	ActiveExports metric.Int64UpDownCounter
}

var exportBuckets = []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300}

var analysisBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesRendered, err = m.Int64Counter("lyricmotion.frames.rendered",
		metric.WithDescription("Frames rendered and accepted by the encoder."),
	); err != nil {
		return nil, err
	}
	if met.Exports, err = m.Int64Counter("lyricmotion.exports",
		metric.WithDescription("Finished exports by terminal status."),
	); err != nil {
		return nil, err
	}
	if met.ExportDuration, err = m.Float64Histogram("lyricmotion.export.duration",
		metric.WithDescription("Wall time from export start to terminal state."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(exportBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("lyricmotion.analysis.duration",
		metric.WithDescription("Latency of audio decoding plus beat detection, or palette extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveExports, err = m.Int64UpDownCounter("lyricmotion.active_exports",
		metric.WithDescription("Exports currently rendering."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

func (m *Metrics) FrameRendered(ctx context.Context) {
	m.FramesRendered.Add(ctx, 1)
}

func (m *Metrics) ExportStarted(ctx context.Context) {
	m.ActiveExports.Add(ctx, 1)
}

func (m *Metrics) ExportFinished(ctx context.Context, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Exports.Add(ctx, 1, attrs)
	m.ExportDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.ActiveExports.Add(ctx, -1)
}

// AnalysisFinished records one analysis stage, "audio" or "palette".
func (m *Metrics) AnalysisFinished(ctx context.Context, stage string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AnalysisDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}
