package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/models"
)

func TestCollectorsObserveBatch(t *testing.T) {
	c := NewCollectors(prometheus.NewRegistry())
	c.ObserveBatch(ingest.Report{
		Dataset:      models.Dataset{Rows: make([]models.NormalizedRow, 3)},
		TablesLoaded: 1,
		RowsDropped:  2,
		Diagnostics: []models.Diagnostic{
			{Kind: models.DiagUnresolvedField},
			{Kind: models.DiagUnresolvedField},
			{Kind: models.DiagSourceRead},
		},
	}, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.batches))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.rowsLoaded))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rowsDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.diagnostics.WithLabelValues(string(models.DiagUnresolvedField))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.diagnostics.WithLabelValues(string(models.DiagSourceRead))))
}
