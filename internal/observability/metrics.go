// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Trend run metrics
	TrendRunsTotal    *prometheus.CounterVec
	TrendRunDuration  prometheus.Histogram
	ChunksTotal       *prometheus.CounterVec
	ChunkDuration     *prometheus.HistogramVec
	ItemsWritten      prometheus.Counter
	ItemsSkipped      *prometheus.CounterVec
	RunProgressOffset prometheus.Gauge

	// Ingestion metrics
	IngestionGroupsTotal       *prometheus.CounterVec
	IngestionObservationsTotal prometheus.Counter
	IngestionRowsRejected      prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulTrendRun  prometheus.Gauge
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "tcg_price_trends"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Trend run metrics
		TrendRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trends",
			Name:      "runs_total",
			Help:      "Total number of trend runs by status",
		}, []string{"status"}),
		TrendRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trends",
			Name:      "run_duration_seconds",
			Help:      "Trend run duration in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		ChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trends",
			Name:      "chunks_total",
			Help:      "Total number of chunks by outcome",
		}, []string{"outcome"}),
		ChunkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trends",
			Name:      "chunk_stage_duration_seconds",
			Help:      "Chunk stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		ItemsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trends",
			Name:      "items_written_total",
			Help:      "Total number of price change records written",
		}),
		ItemsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trends",
			Name:      "items_skipped_total",
			Help:      "Total number of items without a record by reason",
		}, []string{"reason"}),
		RunProgressOffset: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trends",
			Name:      "progress_offset",
			Help:      "Catalog offset reached by the current trend run",
		}),

		// Ingestion metrics
		IngestionGroupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "groups_total",
			Help:      "Total number of groups ingested by outcome",
		}, []string{"outcome"}),
		IngestionObservationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_stored_total",
			Help:      "Total number of price observations stored",
		}),
		IngestionRowsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_rejected_total",
			Help:      "Total number of malformed CSV rows skipped",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulTrendRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_trend_run_timestamp",
			Help:      "Unix timestamp of last completed trend run",
		}),
		LastSuccessfulIngestion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTrendRun records a finished trend run.
func (m *Metrics) RecordTrendRun(status string, durationSeconds float64, finishedUnix int64) {
	if m == nil {
		return
	}
	m.TrendRunsTotal.WithLabelValues(status).Inc()
	m.TrendRunDuration.Observe(durationSeconds)
	if status == "COMPLETED" {
		m.LastSuccessfulTrendRun.Set(float64(finishedUnix))
	}
}

// RecordChunk records a chunk outcome ("written" or "skipped").
func (m *Metrics) RecordChunk(outcome string) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(outcome).Inc()
}

// RecordStage records how long one chunk stage took.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.ChunkDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordItems records written and skipped item counts for a chunk.
func (m *Metrics) RecordItems(written, withoutPrice, rejected int) {
	if m == nil {
		return
	}
	m.ItemsWritten.Add(float64(written))
	m.ItemsSkipped.WithLabelValues("no_current_price").Add(float64(withoutPrice))
	m.ItemsSkipped.WithLabelValues("invalid_price").Add(float64(rejected))
}

// SetProgress updates the progress offset gauge.
func (m *Metrics) SetProgress(offset int) {
	if m == nil {
		return
	}
	m.RunProgressOffset.Set(float64(offset))
}

// RecordGroupIngested records one group's ingestion outcome ("ok" or "failed").
func (m *Metrics) RecordGroupIngested(outcome string, stored, rejected int) {
	if m == nil {
		return
	}
	m.IngestionGroupsTotal.WithLabelValues(outcome).Inc()
	m.IngestionObservationsTotal.Add(float64(stored))
	m.IngestionRowsRejected.Add(float64(rejected))
}

// RecordIngestionSuccess marks a completed ingestion pass.
func (m *Metrics) RecordIngestionSuccess(finishedUnix int64) {
	if m == nil {
		return
	}
	m.LastSuccessfulIngestion.Set(float64(finishedUnix))
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordDBQuery records database query metrics on DefaultMetrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.RecordDBQuery(database, operation, seconds, err)
}
