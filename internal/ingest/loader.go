package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/store"
)

// Recorder receives ingestion counters.
type Recorder interface {
	ObserveBatch(rep Report, elapsed time.Duration)
}

type Loader struct {
	fetch *Fetcher
	st    *store.MemoryStore
	log   *slog.Logger
	rec   Recorder
}

func NewLoader(fetch *Fetcher, st *store.MemoryStore, log *slog.Logger, rec Recorder) *Loader {
	return &Loader{fetch: fetch, st: st, log: log, rec: rec}
}

// Load reads, normalizes and stores one batch of uploaded sources.
func (l *Loader) Load(ctx context.Context, sources []Source) (models.Batch, error) {
	start := time.Now()
	tables, readDiags, err := ReadAll(ctx, l.fetch, sources)
	if err != nil {
		return models.Batch{}, err
	}
	rep := Normalize(tables)
	rep.Diagnostics = append(readDiags, rep.Diagnostics...)

	for _, d := range rep.Diagnostics {
		l.log.Warn("ingest diagnostic",
			slog.String("kind", string(d.Kind)),
			slog.String("source", d.SourceID),
			slog.String("section", d.SectionID),
			slog.String("msg", d.Message))
	}
	if rep.RowsDropped > 0 {
		l.log.Debug("rows dropped for unparseable date", slog.Int("rows", rep.RowsDropped))
	}
	if l.rec != nil {
		l.rec.ObserveBatch(rep, time.Since(start))
	}

	b := l.st.Put(rep.Dataset, rep.Diagnostics)
	l.log.Info("ingest complete",
		slog.String("batch", b.ID),
		slog.Int("sources", len(sources)),
		slog.Int("tables", rep.TablesLoaded),
		slog.Int("rows", len(rep.Dataset.Rows)))
	return b, nil
}
