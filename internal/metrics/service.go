package metrics

import (
	"errors"
	"fmt"
	"math"
	"net/url"

	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/store"
)

var (
	ErrBadQuery     = errors.New("bad query")
	ErrFieldMissing = errors.New("column not detected in data")
)

// Service answers the dashboard queries over stored batches. Every query
// filters a copy of the batch rows.
type Service struct{ st *store.MemoryStore }

func NewService(st *store.MemoryStore) *Service { return &Service{st: st} }

func (s *Service) load(id string, v url.Values) (models.Batch, []models.NormalizedRow, error) {
	b, err := s.st.Get(id)
	if err != nil {
		return models.Batch{}, nil, err
	}
	f, err := ParseFilter(v)
	if err != nil {
		return models.Batch{}, nil, err
	}
	return b, f.Apply(b.Dataset), nil
}

func (s *Service) Rows(id string, v url.Values) ([]models.NormalizedRow, []models.Diagnostic, error) {
	b, rows, err := s.load(id, v)
	if err != nil {
		return nil, nil, err
	}
	return rows, b.Diagnostics, nil
}

func (s *Service) Facets(id string) (models.Facets, error) {
	b, err := s.st.Get(id)
	if err != nil {
		return models.Facets{}, err
	}
	return FacetsOf(b.Dataset), nil
}

func (s *Service) Summary(id string, v url.Values) (models.Summary, error) {
	_, rows, err := s.load(id, v)
	if err != nil {
		return models.Summary{}, err
	}
	sum := Summarize(rows)
	sum.Cost = round2(sum.Cost)
	sum.CTR = round3(sum.CTR)
	sum.CostPerConversionTotal = roundPtr(sum.CostPerConversionTotal, round2)
	return sum, nil
}

func (s *Service) Series(id string, v url.Values) ([]models.Point, error) {
	b, rows, err := s.load(id, v)
	if err != nil {
		return nil, err
	}
	metric := norm(v.Get("metric"))
	if metric == "" {
		metric = "conversions"
	}
	if metric == string(models.FieldLeads) && !b.Dataset.Has(models.FieldLeads) {
		return nil, fmt.Errorf("%w: %s", ErrFieldMissing, models.FieldLeads)
	}
	pts, err := Series(rows, metric, ParseFreq(v.Get("freq")))
	if err != nil {
		return nil, err
	}
	for i := range pts {
		pts[i].Value = roundPtr(pts[i].Value, round2)
	}
	return pts, nil
}

func (s *Service) CostPerConversion(id string, v url.Values) ([]models.Point, error) {
	_, rows, err := s.load(id, v)
	if err != nil {
		return nil, err
	}
	pts := CostPerConversionTimeline(rows)
	for i := range pts {
		pts[i].Value = roundPtr(pts[i].Value, round2)
	}
	return pts, nil
}

var breakdowns = map[string]struct {
	needs models.FieldKey
	fn    func([]models.NormalizedRow) []models.Metrics
}{
	"ctr-by-channel":          {models.FieldChannel, MeanCTRByChannel},
	"conversions-by-campaign": {models.FieldCampaign, ConversionsByCampaign},
	"region-channel":          {models.FieldChannel, ConversionsByRegionChannel},
	"channel-performance":     {models.FieldChannel, ChannelPerformance},
	"leads-by-region":         {models.FieldLeads, LeadsByRegion},
}

// Breakdown runs one of the grouped charts. The optional column it needs
// is checked against the whole batch, not the filtered rows.
func (s *Service) Breakdown(id, kind string, v url.Values) ([]models.Metrics, error) {
	bd, ok := breakdowns[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown breakdown %q", ErrBadQuery, kind)
	}
	b, rows, err := s.load(id, v)
	if err != nil {
		return nil, err
	}
	if !b.Dataset.Has(bd.needs) {
		return nil, fmt.Errorf("%w: %s", ErrFieldMissing, bd.needs)
	}
	out := bd.fn(rows)
	for i := range out {
		out[i].Cost = round2(out[i].Cost)
		out[i].CTR = roundPtr(out[i].CTR, round3)
	}
	return out, nil
}

func roundPtr(p *float64, r func(float64) float64) *float64 {
	if p == nil {
		return nil
	}
	v := r(*p)
	return &v
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }
