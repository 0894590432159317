package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AngelCh415/campaign-dash/internal/ingest"
)

// Collectors tracks ingestion outcomes. It satisfies ingest.Recorder.
type Collectors struct {
	batches      prometheus.Counter
	tablesLoaded prometheus.Counter
	diagnostics  *prometheus.CounterVec
	rowsLoaded   prometheus.Counter
	rowsDropped  prometheus.Counter
	loadSeconds  prometheus.Histogram
}

var _ ingest.Recorder = (*Collectors)(nil)

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_batches_total", Help: "Ingestion batches processed.",
		}),
		tablesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_tables_loaded_total", Help: "Sheets that contributed rows.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_diagnostics_total", Help: "Diagnostics emitted, by kind.",
		}, []string{"kind"}),
		rowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_rows_loaded_total", Help: "Rows added to unified datasets.",
		}),
		rowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_rows_dropped_total", Help: "Rows dropped for an unparseable date.",
		}),
		loadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "dashboard_load_seconds", Help: "Time to read and normalize a batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.batches, c.tablesLoaded, c.diagnostics, c.rowsLoaded, c.rowsDropped, c.loadSeconds)
	return c
}

func (c *Collectors) ObserveBatch(rep ingest.Report, elapsed time.Duration) {
	c.batches.Inc()
	c.tablesLoaded.Add(float64(rep.TablesLoaded))
	for _, d := range rep.Diagnostics {
		c.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
	c.rowsLoaded.Add(float64(len(rep.Dataset.Rows)))
	c.rowsDropped.Add(float64(rep.RowsDropped))
	c.loadSeconds.Observe(elapsed.Seconds())
}
