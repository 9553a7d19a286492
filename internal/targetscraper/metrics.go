package targetscraper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var meter = otel.Meter("damadam-scraper/internal/targetscraper")

type runMetrics struct {
	targets        metric.Int64Counter
	targetDuration metric.Float64Histogram
	runs           metric.Int64Counter
	runDuration    metric.Float64Histogram
}

func newRunMetrics() runMetrics {
	fallback := noop.NewMeterProvider().Meter("")

	targets, err := meter.Int64Counter(
		"targetscraper.targets",
		metric.WithDescription("Targets processed, by outcome and failure class."),
	)
	if err != nil {
		targets, _ = fallback.Int64Counter("targetscraper.targets")
	}
	targetDuration, err := meter.Float64Histogram(
		"targetscraper.target.duration",
		metric.WithDescription("Time spent on one target."),
		metric.WithUnit("s"),
	)
	if err != nil {
		targetDuration, _ = fallback.Float64Histogram("targetscraper.target.duration")
	}
	runs, err := meter.Int64Counter(
		"targetscraper.runs",
		metric.WithDescription("Runs, by stop reason."),
	)
	if err != nil {
		runs, _ = fallback.Int64Counter("targetscraper.runs")
	}
	runDuration, err := meter.Float64Histogram(
		"targetscraper.run.duration",
		metric.WithDescription("Wall clock time of a run."),
		metric.WithUnit("s"),
	)
	if err != nil {
		runDuration, _ = fallback.Float64Histogram("targetscraper.run.duration")
	}

	return runMetrics{
		targets:        targets,
		targetDuration: targetDuration,
		runs:           runs,
		runDuration:    runDuration,
	}
}

func (m runMetrics) recordTarget(ctx context.Context, result Result) {
	outcome := OutcomeFailed
	if result.Succeeded() {
		outcome = OutcomeCompleted
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("class", result.Class),
	)
	m.targets.Add(ctx, 1, attrs)
	m.targetDuration.Record(ctx, result.Duration.Seconds(), attrs)
}

func (m runMetrics) recordRun(ctx context.Context, stats RunStats) {
	attrs := metric.WithAttributes(attribute.String("stop_reason", string(stats.StopReason)))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, stats.Duration.Seconds(), attrs)
}
