package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtcopilot/courtcopilot/internal/observability"
)

func newCollector(t *testing.T) (*telemetrytesting.FakeCollector, *telemetry.System) {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)
	return collector, sys
}

func installGlobal(t *testing.T, sys *telemetry.System) {
	t.Helper()
	previous := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = previous })
}

func TestPipelineRecorder(t *testing.T) {
	collector, sys := newCollector(t)
	rec := NewPipeline(sys)

	rec.RecordSearch("done", 120*time.Millisecond)
	rec.RecordExtraction("telemetry", false, 40*time.Millisecond)
	rec.RecordExtraction("timeline", true, 30*time.Millisecond)

	assert.Equal(t, 1, collector.CountMetricsByName(SearchesTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(SearchDurationMs))
	assert.Equal(t, 2, collector.CountMetricsByName(ExtractionsTotal))
	assert.Equal(t, 2, collector.CountMetricsByName(ExtractionDurationMs))
}

func TestPipelineRecorderFallsBackToGlobal(t *testing.T) {
	t.Run("NoSystem", func(t *testing.T) {
		installGlobal(t, nil)
		assert.NotPanics(t, func() {
			NewPipeline(nil).RecordSearch("failed", time.Second)
			RecordCacheCleared(3)
			RecordHTTPRequest(http.MethodGet, "/v1/history", http.StatusOK, time.Millisecond, 10)
		})
	})

	t.Run("Global", func(t *testing.T) {
		collector, sys := newCollector(t)
		installGlobal(t, sys)

		NewPipeline(nil).RecordSearch("cache_hit", time.Millisecond)
		RecordCacheCleared(0)
		RecordCacheCleared(2)

		assert.Equal(t, 1, collector.CountMetricsByName(SearchesTotal))
		assert.Equal(t, 1, collector.CountMetricsByName(CacheClearedTotal))
	})
}

func TestHTTPMetrics(t *testing.T) {
	collector, sys := newCollector(t)
	installGlobal(t, sys)

	RecordHTTPRequest(http.MethodPost, "/v1/search", http.StatusOK, 5*time.Millisecond, 512)
	RecordHTTPRequest(http.MethodPost, "/v1/search", http.StatusBadGateway, 5*time.Millisecond, 64)
	RecordError("EXTERNAL_SERVICE_ERROR", http.StatusBadGateway, "/v1/search")
	RecordError("NOT_FOUND", http.StatusNotFound, "")
	RecordPanic()

	assert.Equal(t, 2, collector.CountMetricsByName(HTTPRequestsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(HTTPErrorsTotal))
	assert.Equal(t, 2, collector.CountMetricsByName(ErrorsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsByEndpoint))
	assert.Equal(t, 1, collector.CountMetricsByName(PanicsTotal))
}
