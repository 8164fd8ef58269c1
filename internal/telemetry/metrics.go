package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/pagepack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram

	// Graph metrics
	ModulesTransformedTotal metric.Int64Counter
	ModulesVerbatimTotal    metric.Int64Counter

	// Output metrics
	ArtifactsWrittenTotal metric.Int64Counter
	ArtifactBytesTotal    metric.Int64Counter

	// Watch metrics
	RebuildsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Build metrics
	m.BuildsTotal, _ = meter.Int64Counter(
		"pagepack.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"pagepack.builds.errors.total",
		metric.WithDescription("Total number of builds that failed"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"pagepack.builds.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	// Graph metrics
	m.ModulesTransformedTotal, _ = meter.Int64Counter(
		"pagepack.modules.transformed.total",
		metric.WithDescription("Total number of modules run through a rule"),
		metric.WithUnit("{module}"),
	)

	m.ModulesVerbatimTotal, _ = meter.Int64Counter(
		"pagepack.modules.verbatim.total",
		metric.WithDescription("Total number of modules emitted without transformation"),
		metric.WithUnit("{module}"),
	)

	// Output metrics
	m.ArtifactsWrittenTotal, _ = meter.Int64Counter(
		"pagepack.artifacts.written.total",
		metric.WithDescription("Total number of files written to the output directory"),
		metric.WithUnit("{file}"),
	)

	m.ArtifactBytesTotal, _ = meter.Int64Counter(
		"pagepack.artifacts.bytes.total",
		metric.WithDescription("Total number of bytes written to the output directory"),
		metric.WithUnit("By"),
	)

	// Watch metrics
	m.RebuildsTotal, _ = meter.Int64Counter(
		"pagepack.watch.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	return m
}
