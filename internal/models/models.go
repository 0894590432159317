package models

import "time"

type FieldKey string

const (
	FieldDate        FieldKey = "date"
	FieldRegion      FieldKey = "region"
	FieldClicks      FieldKey = "clicks"
	FieldImpressions FieldKey = "impressions"
	FieldConversions FieldKey = "conversions"
	FieldCost        FieldKey = "cost"
	FieldChannel     FieldKey = "channel"
	FieldCampaign    FieldKey = "campaign"
	FieldLeads       FieldKey = "leads"
)

// RequiredFields must all resolve for a table to be accepted.
var RequiredFields = []FieldKey{
	FieldDate, FieldRegion, FieldClicks, FieldImpressions, FieldConversions, FieldCost,
}

var OptionalFields = []FieldKey{FieldChannel, FieldCampaign, FieldLeads}

// RawTable is one sheet as produced by a spreadsheet reader. Headers keeps
// the original column order; rows are keyed by header.
type RawTable struct {
	Headers []string
	Rows    []map[string]any
}

// SourceTable is a RawTable plus its provenance.
type SourceTable struct {
	Table     RawTable
	SourceID  string // file
	SectionID string // sheet
}

// ColumnMapping holds the header resolved for each field. Unresolved
// fields are absent.
type ColumnMapping map[FieldKey]string

func (m ColumnMapping) Missing(keys []FieldKey) []FieldKey {
	var out []FieldKey
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

type NormalizedRow struct {
	Date              time.Time `json:"date"`
	Region            string    `json:"region"`
	Clicks            float64   `json:"clicks"`
	Impressions       float64   `json:"impressions"`
	Conversions       float64   `json:"conversions"`
	Cost              float64   `json:"cost"`
	Channel           *string   `json:"channel,omitempty"`
	Campaign          *string   `json:"campaign,omitempty"`
	Leads             *float64  `json:"leads,omitempty"`
	CTR               float64   `json:"ctr"`
	CostPerConversion *float64  `json:"cost_per_conversion"`
	SourceID          string    `json:"source_id"`
	SectionID         string    `json:"section_id"`
}

// Dataset is the unified result of one ingestion batch.
type Dataset struct {
	Rows []NormalizedRow `json:"rows"`
}

func (d Dataset) Empty() bool { return len(d.Rows) == 0 }

// Has reports whether any row carries the optional field k. Required
// fields are always present on a non-empty dataset.
func (d Dataset) Has(k FieldKey) bool {
	for _, r := range d.Rows {
		switch k {
		case FieldChannel:
			if r.Channel != nil {
				return true
			}
		case FieldCampaign:
			if r.Campaign != nil {
				return true
			}
		case FieldLeads:
			if r.Leads != nil {
				return true
			}
		default:
			return true
		}
	}
	return false
}

type DiagnosticKind string

const (
	DiagUnresolvedField DiagnosticKind = "unresolved_required_field"
	DiagMalformedTable  DiagnosticKind = "malformed_table"
	DiagSourceRead      DiagnosticKind = "source_read_failure"
	DiagEmptyBatch      DiagnosticKind = "empty_batch"
)

// Diagnostic explains why a source, section or whole batch contributed
// no rows.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	SourceID  string         `json:"source_id,omitempty"`
	SectionID string         `json:"section_id,omitempty"`
	Message   string         `json:"message"`
}

type Batch struct {
	ID          string       `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Dataset     Dataset      `json:"-"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type BatchSummary struct {
	ID          string       `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Rows        int          `json:"rows"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Metrics is one aggregated output row of the dashboard's breakdowns.
type Metrics struct {
	Key         string   `json:"key"`
	Group       string   `json:"group,omitempty"`
	Clicks      float64  `json:"clicks,omitempty"`
	Impressions float64  `json:"impressions,omitempty"`
	Conversions float64  `json:"conversions,omitempty"`
	Cost        float64  `json:"cost,omitempty"`
	Leads       float64  `json:"leads,omitempty"`
	CTR         *float64 `json:"ctr,omitempty"`
}

type Point struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

type Summary struct {
	Rows                   int      `json:"rows"`
	Clicks                 float64  `json:"clicks"`
	Impressions            float64  `json:"impressions"`
	Conversions            float64  `json:"conversions"`
	Cost                   float64  `json:"cost"`
	CTR                    float64  `json:"ctr"`
	CostPerConversionTotal *float64 `json:"cost_per_conversion_total"`
}

type Facets struct {
	From      string     `json:"from,omitempty"`
	To        string     `json:"to,omitempty"`
	Regions   []string   `json:"regions"`
	Channels  []string   `json:"channels,omitempty"`
	Campaigns []string   `json:"campaigns,omitempty"`
	Fields    []FieldKey `json:"optional_fields"`
}
