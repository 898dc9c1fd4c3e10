// Package metrics names and emits the counters and histograms of the
// research pipeline and the HTTP surface.
package metrics

import (
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"

	"github.com/courtcopilot/courtcopilot/internal/observability"
)

// Metric names. The exporter adds the application namespace.
const (
	SearchesTotal        = "searches_total"
	SearchDurationMs     = "search_duration_ms"
	ExtractionsTotal     = "extractions_total"
	ExtractionDurationMs = "extraction_duration_ms"
	CacheClearedTotal    = "cache_entries_cleared_total"
	ServerStartTime      = "server_start_time_seconds"
)

// Pipeline records search and extraction outcomes. It satisfies both the
// engine and extract recorder contracts.
type Pipeline struct {
	sys *telemetry.System
}

// NewPipeline emits to sys, or to observability.TelemetrySystem when sys is
// nil.
func NewPipeline(sys *telemetry.System) *Pipeline {
	return &Pipeline{sys: sys}
}

// RecordSearch counts one search by outcome and observes its duration.
func (p *Pipeline) RecordSearch(outcome string, elapsed time.Duration) {
	sys := p.system()
	if sys == nil {
		return
	}
	tags := map[string]string{"outcome": outcome}
	_ = sys.Counter(SearchesTotal, 1, tags)
	_ = sys.Histogram(SearchDurationMs, elapsed, tags)
}

// RecordExtraction counts one extraction by stage and status.
func (p *Pipeline) RecordExtraction(stage string, ok bool, elapsed time.Duration) {
	sys := p.system()
	if sys == nil {
		return
	}
	_ = sys.Counter(ExtractionsTotal, 1, map[string]string{"stage": stage, "status": status(ok)})
	_ = sys.Histogram(ExtractionDurationMs, elapsed, map[string]string{"stage": stage})
}

func (p *Pipeline) system() *telemetry.System {
	if p != nil && p.sys != nil {
		return p.sys
	}
	return observability.TelemetrySystem
}

// RecordCacheCleared counts entries removed by an explicit cache clear.
func RecordCacheCleared(n int) {
	if observability.TelemetrySystem == nil || n <= 0 {
		return
	}
	_ = observability.TelemetrySystem.Counter(CacheClearedTotal, float64(n), nil)
}

// SetServerStartTime records when serve began, as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
