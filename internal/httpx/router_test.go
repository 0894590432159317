package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/report"
	"github.com/AngelCh415/campaign-dash/internal/store"
)

const adsCSV = "Fecha,Región,Clics,Impresiones,Conversiones,Coste,Canal\n" +
	"2024-01-15,Norte,50,1000,5,100,Search\n" +
	"2024-01-16,Sur,10,100,0,20,Social\n"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	cl := ingest.NewHTTPClient(time.Second)
	st := store.NewMemoryStore(0)
	svc := metrics.NewService(st)
	srv := httptest.NewServer(NewRouter(log, Deps{
		Loader:         ingest.NewLoader(ingest.NewFetcher(cl, 0), st, log, metrics.NewCollectors(reg)),
		Metrics:        svc,
		Exporter:       report.NewExporter(cl, svc, config.Config{}),
		Store:          st,
		Gatherer:       reg,
		MaxUploadBytes: 1 << 20,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, srv *httptest.Server, files map[string]string) models.BatchSummary {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/batches", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sum models.BatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	return sum
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestUploadAndQuery(t *testing.T) {
	srv := newTestServer(t)
	sum := upload(t, srv, map[string]string{"ads.csv": adsCSV})
	assert.Equal(t, 2, sum.Rows)
	assert.Empty(t, sum.Diagnostics)

	var body struct {
		Rows []models.NormalizedRow `json:"rows"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/batches/"+sum.ID+"?region=norte", &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, 5.0, body.Rows[0].CTR)
	assert.Equal(t, "ads.csv", body.Rows[0].SourceID)

	var ctr []models.Metrics
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/batches/"+sum.ID+"/breakdown/ctr-by-channel", &ctr))
	require.Len(t, ctr, 2)
	assert.Equal(t, "Search", ctr[0].Key)

	var pts []models.Point
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/batches/"+sum.ID+"/series?metric=cost&freq=daily", &pts))
	assert.Len(t, pts, 2)

	var cpc []models.Point
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/batches/"+sum.ID+"/cost-per-conversion", &cpc))
	require.Len(t, cpc, 2)
	assert.Nil(t, cpc[1].Value)

	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/batches/"+sum.ID+"/breakdown/leads-by-region", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/batches/"+sum.ID+"?from=yesterday", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/batches/unknown/summary", nil))

	var list []models.BatchSummary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/batches", &list))
	assert.Len(t, list, 1)
}

func TestUploadWithNothingValid(t *testing.T) {
	srv := newTestServer(t)
	sum := upload(t, srv, map[string]string{"notes.csv": "Comentario\nhola\n"})
	assert.Equal(t, 0, sum.Rows)
	require.Len(t, sum.Diagnostics, 2)
	assert.Equal(t, models.DiagUnresolvedField, sum.Diagnostics[0].Kind)
	assert.Equal(t, models.DiagEmptyBatch, sum.Diagnostics[1].Kind)

	var f models.Facets
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/batches/"+sum.ID+"/facets", &f))
	assert.Empty(t, f.Regions)
}

func TestUploadByURL(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, adsCSV)
	}))
	defer files.Close()
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/batches", "application/json",
		strings.NewReader(`{"urls":["`+files.URL+`/exports/ads.csv?token=1"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sum models.BatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	assert.Equal(t, 2, sum.Rows)
}

func TestUploadRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/batches", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/batches", "application/json", strings.NewReader(`{"urls":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAndExport(t *testing.T) {
	srv := newTestServer(t)
	sum := upload(t, srv, map[string]string{"ads.csv": adsCSV})

	resp, err := http.Post(srv.URL+"/batches/"+sum.ID+"/export", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/batches/"+sum.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/batches/"+sum.ID, nil))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	upload(t, srv, map[string]string{"ads.csv": adsCSV})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "dashboard_rows_loaded_total 2")
}

func TestWriteJSONStatusEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSONStatus(rec, http.StatusCreated, map[string]float64{"ctr": math.NaN()})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEqual(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	writeJSONStatus(rec, http.StatusCreated, map[string]float64{"ctr": 1.5})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ctr":1.5}`, rec.Body.String())
}

func TestUploadWithNonFiniteCellsStaysQueryable(t *testing.T) {
	srv := newTestServer(t)
	sum := upload(t, srv, map[string]string{
		"ads.csv": adsCSV,
		"bad.csv": "Fecha,Región,Clics,Impresiones,Conversiones,Coste\n" +
			"nan,Norte,1,1,1,1\n" +
			"2024-01-15,Norte,NaN,10,1,Inf\n",
	})
	assert.Equal(t, 2, sum.Rows)
	require.Len(t, sum.Diagnostics, 1)
	assert.Equal(t, models.DiagMalformedTable, sum.Diagnostics[0].Kind)
	assert.Equal(t, "bad.csv", sum.Diagnostics[0].SourceID)

	var body struct {
		Rows []models.NormalizedRow `json:"rows"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/batches/"+sum.ID, &body))
	assert.Len(t, body.Rows, 2)
}
