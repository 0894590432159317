package metrics

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

func regions(rows []models.NormalizedRow) []string {
	out := []string{}
	for _, r := range rows {
		out = append(out, r.Date.Format("2006-01-02")+" "+r.Region)
	}
	return out
}

func TestFilterDateRangeInclusive(t *testing.T) {
	f, err := ParseFilter(url.Values{"from": {"2024-01-03"}, "to": {"2024-01-09"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03 Sur", "2024-01-09 Norte"}, regions(f.Apply(models.Dataset{Rows: sample()})))
}

func TestFilterSets(t *testing.T) {
	ds := models.Dataset{Rows: sample()}

	f, err := ParseFilter(url.Values{"region": {"sur"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03 Sur", "2024-02-20 Sur"}, regions(f.Apply(ds)))

	// rows without a channel drop out once a channel is selected
	f, err = ParseFilter(url.Values{"region": {"Sur"}, "channel": {"Social, Search"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03 Sur"}, regions(f.Apply(ds)))

	f, err = ParseFilter(url.Values{"campaign": {"rebajas"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-09 Norte"}, regions(f.Apply(ds)))
}

func TestFilterDoesNotMutate(t *testing.T) {
	ds := models.Dataset{Rows: sample()}
	f, err := ParseFilter(url.Values{"region": {"Norte"}})
	require.NoError(t, err)
	out := f.Apply(ds)
	out[0].Region = "changed"
	assert.Equal(t, "Norte", ds.Rows[0].Region)
	assert.Len(t, ds.Rows, 4)
}

func TestParseFilterErrors(t *testing.T) {
	_, err := ParseFilter(url.Values{"from": {"01/02/2024"}})
	assert.ErrorIs(t, err, ErrBadQuery)
	_, err = ParseFilter(url.Values{"from": {"2024-02-01"}, "to": {"2024-01-01"}})
	assert.ErrorIs(t, err, ErrBadQuery)

	f, err := ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Len(t, f.Apply(models.Dataset{Rows: sample()}), 4)
}
