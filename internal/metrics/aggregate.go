package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

type Freq string

const (
	Daily   Freq = "daily"
	Weekly  Freq = "weekly"
	Monthly Freq = "monthly"
)

// ParseFreq falls back to daily for anything it does not know.
func ParseFreq(s string) Freq {
	switch norm(s) {
	case "weekly", "w", "semanal":
		return Weekly
	case "monthly", "m", "mensual":
		return Monthly
	}
	return Daily
}

var seriesMetrics = map[string]func(models.NormalizedRow) float64{
	"conversions": func(r models.NormalizedRow) float64 { return r.Conversions },
	"cost":        func(r models.NormalizedRow) float64 { return r.Cost },
	"clicks":      func(r models.NormalizedRow) float64 { return r.Clicks },
	"impressions": func(r models.NormalizedRow) float64 { return r.Impressions },
	"leads": func(r models.NormalizedRow) float64 {
		if r.Leads == nil {
			return 0
		}
		return *r.Leads
	},
}

// bucket returns the label of the period containing t: the day itself,
// the Sunday closing its week, or the last day of its month.
func bucket(t time.Time, f Freq) time.Time {
	d := day(t)
	switch f {
	case Weekly:
		return d.AddDate(0, 0, (7-int(d.Weekday()))%7)
	case Monthly:
		return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return d
}

func nextBucket(b time.Time, f Freq) time.Time {
	switch f {
	case Weekly:
		return b.AddDate(0, 0, 7)
	case Monthly:
		return time.Date(b.Year(), b.Month()+2, 0, 0, 0, 0, 0, time.UTC)
	}
	return b.AddDate(0, 0, 1)
}

// Series sums metric per period between the first and last row, with
// empty periods reported as zero.
func Series(rows []models.NormalizedRow, metric string, f Freq) ([]models.Point, error) {
	val, ok := seriesMetrics[metric]
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric %q", ErrBadQuery, metric)
	}
	out := []models.Point{}
	if len(rows) == 0 {
		return out, nil
	}
	sums := map[time.Time]float64{}
	first, last := bucket(rows[0].Date, f), bucket(rows[0].Date, f)
	for _, r := range rows {
		b := bucket(r.Date, f)
		sums[b] += val(r)
		if b.Before(first) {
			first = b
		}
		if b.After(last) {
			last = b
		}
	}
	for b := first; !b.After(last); b = nextBucket(b, f) {
		v := sums[b]
		out = append(out, models.Point{Date: b.Format("2006-01-02"), Value: &v})
	}
	return out, nil
}

func Summarize(rows []models.NormalizedRow) models.Summary {
	s := models.Summary{Rows: len(rows)}
	for _, r := range rows {
		s.Clicks += r.Clicks
		s.Impressions += r.Impressions
		s.Conversions += r.Conversions
		s.Cost += r.Cost
	}
	if s.Impressions > 0 {
		s.CTR = s.Clicks / s.Impressions * 100
	}
	if s.Conversions > 0 {
		v := s.Cost / s.Conversions
		s.CostPerConversionTotal = &v
	}
	return s
}

// CostPerConversionTimeline lists every row's cost per conversion in date
// order; rows without conversions have a nil value.
func CostPerConversionTimeline(rows []models.NormalizedRow) []models.Point {
	sorted := append([]models.NormalizedRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	out := make([]models.Point, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, models.Point{Date: r.Date.Format("2006-01-02"), Value: r.CostPerConversion})
	}
	return out
}

type group struct {
	key, sub string
	m        models.Metrics
	n        int
	ctrSum   float64
}

// groupBy folds rows by key (and optional sub key), skipping rows where
// key reports false. Output is sorted by key then sub key.
func groupBy(rows []models.NormalizedRow, key func(models.NormalizedRow) (string, string, bool)) []*group {
	idx := map[[2]string]*group{}
	var out []*group
	for _, r := range rows {
		k, sub, ok := key(r)
		if !ok {
			continue
		}
		g, found := idx[[2]string{k, sub}]
		if !found {
			g = &group{key: k, sub: sub, m: models.Metrics{Key: k, Group: sub}}
			idx[[2]string{k, sub}] = g
			out = append(out, g)
		}
		g.n++
		g.ctrSum += r.CTR
		g.m.Clicks += r.Clicks
		g.m.Impressions += r.Impressions
		g.m.Conversions += r.Conversions
		g.m.Cost += r.Cost
		if r.Leads != nil {
			g.m.Leads += *r.Leads
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key != out[j].key {
			return out[i].key < out[j].key
		}
		return out[i].sub < out[j].sub
	})
	return out
}

func byChannel(r models.NormalizedRow) (string, string, bool) {
	if r.Channel == nil {
		return "", "", false
	}
	return *r.Channel, "", true
}

// MeanCTRByChannel averages the per-row CTR of each channel.
func MeanCTRByChannel(rows []models.NormalizedRow) []models.Metrics {
	gs := groupBy(rows, byChannel)
	out := make([]models.Metrics, 0, len(gs))
	for _, g := range gs {
		mean := g.ctrSum / float64(g.n)
		out = append(out, models.Metrics{Key: g.key, CTR: &mean})
	}
	return out
}

func ConversionsByCampaign(rows []models.NormalizedRow) []models.Metrics {
	gs := groupBy(rows, func(r models.NormalizedRow) (string, string, bool) {
		if r.Campaign == nil {
			return "", "", false
		}
		return *r.Campaign, "", true
	})
	out := make([]models.Metrics, 0, len(gs))
	for _, g := range gs {
		out = append(out, models.Metrics{Key: g.key, Conversions: g.m.Conversions})
	}
	return out
}

// ConversionsByRegionChannel keys by region and groups by channel.
func ConversionsByRegionChannel(rows []models.NormalizedRow) []models.Metrics {
	gs := groupBy(rows, func(r models.NormalizedRow) (string, string, bool) {
		if r.Channel == nil {
			return "", "", false
		}
		return r.Region, *r.Channel, true
	})
	out := make([]models.Metrics, 0, len(gs))
	for _, g := range gs {
		out = append(out, models.Metrics{Key: g.key, Group: g.sub, Conversions: g.m.Conversions})
	}
	return out
}

// ChannelPerformance sums each channel and recomputes CTR from the sums.
func ChannelPerformance(rows []models.NormalizedRow) []models.Metrics {
	gs := groupBy(rows, byChannel)
	out := make([]models.Metrics, 0, len(gs))
	for _, g := range gs {
		m := g.m
		m.Leads = 0
		v := 0.0
		if m.Impressions > 0 {
			v = m.Clicks / m.Impressions * 100
		}
		m.CTR = &v
		out = append(out, m)
	}
	return out
}

func LeadsByRegion(rows []models.NormalizedRow) []models.Metrics {
	gs := groupBy(rows, func(r models.NormalizedRow) (string, string, bool) {
		if r.Leads == nil {
			return "", "", false
		}
		return r.Region, "", true
	})
	out := make([]models.Metrics, 0, len(gs))
	for _, g := range gs {
		out = append(out, models.Metrics{Key: g.key, Leads: g.m.Leads})
	}
	return out
}

// FacetsOf lists the filter choices of a dataset in first-seen order.
func FacetsOf(ds models.Dataset) models.Facets {
	f := models.Facets{Regions: []string{}, Fields: []models.FieldKey{}}
	seen := map[string]struct{}{}
	add := func(dst *[]string, kind string, v *string) {
		if v == nil || *v == "" {
			return
		}
		k := kind + "|" + *v
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		*dst = append(*dst, *v)
	}
	var from, to time.Time
	for i, r := range ds.Rows {
		if i == 0 || r.Date.Before(from) {
			from = r.Date
		}
		if i == 0 || r.Date.After(to) {
			to = r.Date
		}
		region := r.Region
		add(&f.Regions, "r", &region)
		add(&f.Channels, "c", r.Channel)
		add(&f.Campaigns, "k", r.Campaign)
	}
	if !ds.Empty() {
		f.From = from.Format("2006-01-02")
		f.To = to.Format("2006-01-02")
	}
	for _, k := range models.OptionalFields {
		if ds.Has(k) {
			f.Fields = append(f.Fields, k)
		}
	}
	return f
}
