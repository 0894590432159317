package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

// Filter narrows a dataset the way the dashboard sidebar does. Nil or
// empty members do not filter.
type Filter struct {
	From, To  *time.Time
	Regions   map[string]struct{}
	Channels  map[string]struct{}
	Campaigns map[string]struct{}
}

func ParseFilter(v url.Values) (Filter, error) {
	var f Filter
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		s := strings.TrimSpace(v.Get(p.name))
		if s == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrBadQuery, p.name)
		}
		*p.dst = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return Filter{}, fmt.Errorf("%w: to before from", ErrBadQuery)
	}
	f.Regions = csvSet(v.Get("region"))
	f.Channels = csvSet(v.Get("channel"))
	f.Campaigns = csvSet(v.Get("campaign"))
	return f, nil
}

// Apply returns the matching rows in a new slice; ds is left untouched.
func (f Filter) Apply(ds models.Dataset) []models.NormalizedRow {
	out := make([]models.NormalizedRow, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) match(r models.NormalizedRow) bool {
	d := day(r.Date)
	if f.From != nil && d.Before(day(*f.From)) {
		return false
	}
	if f.To != nil && d.After(day(*f.To)) {
		return false
	}
	if !inSet(f.Regions, &r.Region) || !inSet(f.Channels, r.Channel) || !inSet(f.Campaigns, r.Campaign) {
		return false
	}
	return true
}

// inSet treats a missing value as not selected once a selection exists.
func inSet(set map[string]struct{}, v *string) bool {
	if len(set) == 0 {
		return true
	}
	if v == nil {
		return false
	}
	_, ok := set[norm(*v)]
	return ok
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func csvSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = norm(p)
		if p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
