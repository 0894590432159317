package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/httpx"
	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/report"
	"github.com/AngelCh415/campaign-dash/internal/store"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cl := ingest.NewHTTPClient(cfg.HTTPTimeout)
	st := store.NewMemoryStore(cfg.MaxBatches)
	loader := ingest.NewLoader(ingest.NewFetcher(cl, cfg.MaxUploadBytes), st, logger, metrics.NewCollectors(reg))
	mSvc := metrics.NewService(st)

	r := httpx.NewRouter(logger, httpx.Deps{
		Loader:         loader,
		Metrics:        mSvc,
		Exporter:       report.NewExporter(cl, mSvc, cfg),
		Store:          st,
		Gatherer:       reg,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server", slog.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
