package report

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/models"
)

var ErrSinkNotConfigured = errors.New("sink not configured")

type payload struct {
	BatchID     string                 `json:"batch_id"`
	Summary     models.Summary         `json:"summary"`
	Rows        []models.NormalizedRow `json:"rows"`
	Diagnostics []models.Diagnostic    `json:"diagnostics"`
}

// Exporter pushes a filtered batch to the reporting sink, signing the
// body with HMAC-SHA256 in X-Signature.
type Exporter struct {
	c   ingest.HTTPClient
	svc *metrics.Service
	cfg config.Config
}

func NewExporter(c ingest.HTTPClient, svc *metrics.Service, cfg config.Config) *Exporter {
	return &Exporter{c: c, svc: svc, cfg: cfg}
}

func (e *Exporter) Export(ctx context.Context, batchID string, v url.Values) (int, error) {
	if e.cfg.SinkURL == "" || e.cfg.SinkSecret == "" {
		return 0, ErrSinkNotConfigured
	}
	rows, diags, err := e.svc.Rows(batchID, v)
	if err != nil {
		return 0, err
	}
	sum, err := e.svc.Summary(batchID, v)
	if err != nil {
		return 0, err
	}
	b, err := json.Marshal(payload{BatchID: batchID, Summary: sum, Rows: rows, Diagnostics: diags})
	if err != nil {
		return 0, err
	}
	mac := hmac.New(sha256.New, []byte(e.cfg.SinkSecret))
	mac.Write(b)
	sig := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.SinkURL, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)
	resp, err := e.c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("export sink non-2xx: %d", resp.StatusCode)
	}
	return len(rows), nil
}
