package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()

	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)

	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetrics_RecordChunkAndItems(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordChunk("written")
	m.RecordChunk("written")
	m.RecordChunk("skipped")
	m.RecordItems(480, 15, 5)

	assert.Equal(t, 2.0, value(t, m.ChunksTotal.WithLabelValues("written")))
	assert.Equal(t, 1.0, value(t, m.ChunksTotal.WithLabelValues("skipped")))
	assert.Equal(t, 480.0, value(t, m.ItemsWritten))
	assert.Equal(t, 15.0, value(t, m.ItemsSkipped.WithLabelValues("no_current_price")))
	assert.Equal(t, 5.0, value(t, m.ItemsSkipped.WithLabelValues("invalid_price")))
}

func TestMetrics_RecordTrendRun(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordTrendRun("FAILED", 3, 1700000000)
	assert.Equal(t, 0.0, value(t, m.LastSuccessfulTrendRun))

	m.RecordTrendRun("COMPLETED", 42, 1700000100)
	assert.Equal(t, 1700000100.0, value(t, m.LastSuccessfulTrendRun))
	assert.Equal(t, 1.0, value(t, m.TrendRunsTotal.WithLabelValues("COMPLETED")))
}

func TestMetrics_RecordDBQueryError(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordDBQuery("postgres", "upsert_price_change", 0.01, nil)
	m.RecordDBQuery("postgres", "upsert_price_change", 0.02, errors.New("timeout"))

	assert.Equal(t, 1.0, value(t, m.DBQueryErrors.WithLabelValues("postgres", "upsert_price_change")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordChunk("written")
		m.RecordItems(1, 2, 3)
		m.RecordStage("resolve", 0.1)
		m.RecordTrendRun("COMPLETED", 1, 1)
		m.SetProgress(500)
		m.RecordGroupIngested("ok", 10, 1)
		m.RecordIngestionSuccess(1)
		m.RecordDBQuery("postgres", "count", 0.1, nil)
	})
}
