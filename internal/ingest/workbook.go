package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

// Source is one uploaded file, either inline or by URL.
type Source struct {
	ID   string
	Data []byte
	URL  string
}

// ReadWorkbook returns one table per sheet. An unreadable workbook is
// reported as a diagnostic, never as an error.
func ReadWorkbook(sourceID string, r io.Reader) ([]models.SourceTable, []models.Diagnostic) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, []models.Diagnostic{readFailure(sourceID, fmt.Errorf("open workbook: %w", err))}
	}
	defer func() { _ = f.Close() }()

	var (
		out   []models.SourceTable
		diags []models.Diagnostic
	)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			diags = append(diags, models.Diagnostic{
				Kind:      models.DiagSourceRead,
				SourceID:  sourceID,
				SectionID: sheet,
				Message:   fmt.Sprintf("error reading sheet %q of %q: %v", sheet, sourceID, err),
			})
			continue
		}
		out = append(out, models.SourceTable{Table: tableFromRows(rows), SourceID: sourceID, SectionID: sheet})
	}
	return out, diags
}

// ReadCSV returns the file as a single section named "csv".
func ReadCSV(sourceID string, r io.Reader) ([]models.SourceTable, []models.Diagnostic) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, []models.Diagnostic{readFailure(sourceID, fmt.Errorf("read csv: %w", err))}
	}
	return []models.SourceTable{{Table: tableFromRows(rows), SourceID: sourceID, SectionID: "csv"}}, nil
}

func tableFromRows(rows [][]string) models.RawTable {
	if len(rows) == 0 {
		return models.RawTable{}
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	t := models.RawTable{Headers: headers}
	for _, cells := range rows[1:] {
		row := make(map[string]any, len(headers))
		for j, h := range headers {
			if j < len(cells) {
				row[h] = cells[j]
			} else {
				row[h] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ReadAll reads every source concurrently; the result keeps input order.
// Sources with a URL are downloaded through fetch first.
func ReadAll(ctx context.Context, fetch *Fetcher, sources []Source) ([]models.SourceTable, []models.Diagnostic, error) {
	type result struct {
		tables []models.SourceTable
		diags  []models.Diagnostic
	}
	results := make([]result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			data := src.Data
			if src.URL != "" {
				if fetch == nil {
					results[i].diags = []models.Diagnostic{readFailure(src.ID, fmt.Errorf("no fetcher configured"))}
					return nil
				}
				b, err := fetch.Fetch(gctx, src.URL)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					results[i].diags = []models.Diagnostic{readFailure(src.ID, err)}
					return nil
				}
				data = b
			}
			results[i].tables, results[i].diags = readSource(src.ID, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		tables []models.SourceTable
		diags  []models.Diagnostic
	)
	for _, r := range results {
		tables = append(tables, r.tables...)
		diags = append(diags, r.diags...)
	}
	return tables, diags, nil
}

func readSource(id string, data []byte) ([]models.SourceTable, []models.Diagnostic) {
	if strings.EqualFold(path.Ext(id), ".csv") {
		return ReadCSV(id, bytes.NewReader(data))
	}
	return ReadWorkbook(id, bytes.NewReader(data))
}

func readFailure(sourceID string, err error) models.Diagnostic {
	return models.Diagnostic{
		Kind:     models.DiagSourceRead,
		SourceID: sourceID,
		Message:  fmt.Sprintf("error reading file %q: %v", sourceID, err),
	}
}
