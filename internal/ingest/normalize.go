package ingest

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

// Report is the outcome of normalizing a batch, with the counters the
// loader exports.
type Report struct {
	Dataset      models.Dataset
	Diagnostics  []models.Diagnostic
	TablesLoaded int
	RowsDropped  int
}

type tableResult struct {
	rows    []models.NormalizedRow
	dropped int
	diag    *models.Diagnostic
}

// NormalizeAll resolves, renames, filters and enriches every table and
// concatenates the accepted ones in input order. Rejected tables produce a
// diagnostic; a batch where nothing loaded yields an empty dataset plus an
// empty_batch diagnostic.
func NormalizeAll(tables []models.SourceTable) (models.Dataset, []models.Diagnostic) {
	rep := Normalize(tables)
	return rep.Dataset, rep.Diagnostics
}

// Normalize is NormalizeAll with the batch counters kept.
func Normalize(tables []models.SourceTable) Report {
	rep := Report{Dataset: models.Dataset{Rows: []models.NormalizedRow{}}}
	for _, st := range tables {
		res := normalizeTable(st)
		rep.RowsDropped += res.dropped
		if res.diag != nil {
			rep.Diagnostics = append(rep.Diagnostics, *res.diag)
			continue
		}
		if len(res.rows) > 0 {
			rep.TablesLoaded++
		}
		rep.Dataset.Rows = append(rep.Dataset.Rows, res.rows...)
	}
	if rep.Dataset.Empty() {
		rep.Diagnostics = append(rep.Diagnostics, models.Diagnostic{
			Kind:    models.DiagEmptyBatch,
			Message: "no valid data was loaded",
		})
	}
	return rep
}

func normalizeTable(st models.SourceTable) tableResult {
	cols := Resolve(st.Table.Headers)
	if missing := cols.Missing(models.RequiredFields); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, k := range missing {
			names[i] = string(k)
		}
		return tableResult{diag: &models.Diagnostic{
			Kind:      models.DiagUnresolvedField,
			SourceID:  st.SourceID,
			SectionID: st.SectionID,
			Message: fmt.Sprintf("sheet %q of %q is missing required columns (%s); skipped",
				st.SectionID, st.SourceID, strings.Join(names, ", ")),
		}}
	}

	var res tableResult
	for i, raw := range st.Table.Rows {
		d, ok := parseDate(raw[cols[models.FieldDate]])
		if !ok {
			res.dropped++
			continue
		}
		row, err := buildRow(raw, cols)
		if err != nil {
			// a bad cell poisons the whole sheet
			return tableResult{dropped: res.dropped, diag: &models.Diagnostic{
				Kind:      models.DiagMalformedTable,
				SourceID:  st.SourceID,
				SectionID: st.SectionID,
				Message: fmt.Sprintf("error processing sheet %q of %q at row %d: %v",
					st.SectionID, st.SourceID, i+2, err),
			}}
		}
		row.Date = d
		row.SourceID = st.SourceID
		row.SectionID = st.SectionID
		res.rows = append(res.rows, row)
	}
	return res
}

func buildRow(raw map[string]any, cols models.ColumnMapping) (models.NormalizedRow, error) {
	var (
		row models.NormalizedRow
		err error
	)
	row.Region = toString(raw[cols[models.FieldRegion]])

	nums := []struct {
		key models.FieldKey
		dst *float64
	}{
		{models.FieldClicks, &row.Clicks},
		{models.FieldImpressions, &row.Impressions},
		{models.FieldConversions, &row.Conversions},
		{models.FieldCost, &row.Cost},
	}
	for _, n := range nums {
		if *n.dst, err = toFloat(raw[cols[n.key]]); err != nil {
			return row, fmt.Errorf("%s: %w", n.key, err)
		}
	}

	if h, ok := cols[models.FieldChannel]; ok {
		s := toString(raw[h])
		row.Channel = &s
	}
	if h, ok := cols[models.FieldCampaign]; ok {
		s := toString(raw[h])
		row.Campaign = &s
	}
	if h, ok := cols[models.FieldLeads]; ok {
		l, err := toFloat(raw[h])
		if err != nil {
			return row, fmt.Errorf("%s: %w", models.FieldLeads, err)
		}
		row.Leads = &l
	}

	row.CTR = ctr(row.Clicks, row.Impressions)
	row.CostPerConversion = costPerConversion(row.Cost, row.Conversions)
	return row, nil
}

func ctr(clicks, impressions float64) float64 {
	if impressions > 0 {
		return clicks / impressions * 100
	}
	return 0
}

// costPerConversion is nil when there were no conversions, which is not
// the same as conversions that cost nothing.
func costPerConversion(cost, conversions float64) *float64 {
	if conversions > 0 {
		v := cost / conversions
		return &v
	}
	return nil
}
