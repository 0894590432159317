package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/report"
	"github.com/AngelCh415/campaign-dash/internal/store"
	"github.com/AngelCh415/campaign-dash/internal/utils"
)

type Deps struct {
	Loader         *ingest.Loader
	Metrics        *metrics.Service
	Exporter       *report.Exporter
	Store          *store.MemoryStore
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
}

func NewRouter(log *slog.Logger, d Deps) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	if d.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Post("/batches", func(w http.ResponseWriter, r *http.Request) {
		sources, err := readSources(w, r, d.MaxUploadBytes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, err := d.Loader.Load(r.Context(), sources)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Location", "/batches/"+b.ID)
		writeJSONStatus(w, http.StatusCreated, models.BatchSummary{
			ID: b.ID, CreatedAt: b.CreatedAt, Rows: len(b.Dataset.Rows), Diagnostics: b.Diagnostics,
		})
	})

	mux.Get("/batches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Store.List())
	})

	mux.Route("/batches/{id}", func(br chi.Router) {
		br.Get("/", func(w http.ResponseWriter, r *http.Request) {
			rows, diags, err := d.Metrics.Rows(chi.URLParam(r, "id"), r.URL.Query())
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, map[string]any{"rows": rows, "diagnostics": diags})
		})
		br.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			if err := d.Store.Delete(chi.URLParam(r, "id")); err != nil {
				writeErr(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		br.Get("/facets", func(w http.ResponseWriter, r *http.Request) {
			f, err := d.Metrics.Facets(chi.URLParam(r, "id"))
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, f)
		})
		br.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
			s, err := d.Metrics.Summary(chi.URLParam(r, "id"), r.URL.Query())
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, s)
		})
		br.Get("/series", func(w http.ResponseWriter, r *http.Request) {
			pts, err := d.Metrics.Series(chi.URLParam(r, "id"), r.URL.Query())
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, pts)
		})
		br.Get("/cost-per-conversion", func(w http.ResponseWriter, r *http.Request) {
			pts, err := d.Metrics.CostPerConversion(chi.URLParam(r, "id"), r.URL.Query())
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, pts)
		})
		br.Get("/breakdown/{kind}", func(w http.ResponseWriter, r *http.Request) {
			rows, err := d.Metrics.Breakdown(chi.URLParam(r, "id"), chi.URLParam(r, "kind"), r.URL.Query())
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, rows)
		})
		br.Post("/export", func(w http.ResponseWriter, r *http.Request) {
			n, err := d.Exporter.Export(r.Context(), chi.URLParam(r, "id"), r.URL.Query())
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, map[string]any{"exported": n})
		})
	})

	return mux
}

type urlRequest struct {
	URLs []string `json:"urls"`
}

// readSources accepts a multipart upload with one or more "files" parts,
// or a JSON body listing workbook URLs.
func readSources(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]ingest.Source, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return nil, err
		}
		var out []ingest.Source
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			b, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, ingest.Source{ID: fh.Filename, Data: b})
		}
		if len(out) == 0 {
			return nil, errors.New(`no files in "files" field`)
		}
		return out, nil
	case "application/json":
		var req urlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		var out []ingest.Source
		for _, u := range req.URLs {
			if u = strings.TrimSpace(u); u != "" {
				out = append(out, ingest.Source{ID: path.Base(strings.SplitN(u, "?", 2)[0]), URL: u})
			}
		}
		if len(out) == 0 {
			return nil, errors.New("no urls given")
		}
		return out, nil
	}
	return nil, errors.New("expected multipart/form-data or application/json")
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, metrics.ErrBadQuery):
		code = http.StatusBadRequest
	case errors.Is(err, metrics.ErrFieldMissing):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, report.ErrSinkNotConfigured):
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

// writeJSONStatus encodes before writing the header, so an unencodable
// value becomes a 500 instead of a 200 with a truncated body.
func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		slog.Error("encode response", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(b, '\n'))
}
