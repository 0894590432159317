package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

// keywords is scanned in this order for every header. Exports come from
// Spanish-language tools, so the vocabulary is Spanish.
var keywords = []struct {
	key     models.FieldKey
	keyword string
}{
	{models.FieldDate, "fecha"},
	{models.FieldRegion, "region"},
	{models.FieldClicks, "clics"},
	{models.FieldImpressions, "impresiones"},
	{models.FieldConversions, "conversiones"},
	{models.FieldCost, "coste"},
	{models.FieldChannel, "canal"},
	{models.FieldCampaign, "campana"},
	{models.FieldLeads, "leads"},
}

// foldHeader decomposes s, drops combining marks and lower-cases it, so
// "Región" and "CAMPAÑA" become "region" and "campana".
func foldHeader(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// Resolve maps each field to the header whose folded form contains the
// field keyword. When several headers match, the last one wins; one header
// may be assigned to several fields.
func Resolve(headers []string) models.ColumnMapping {
	m := models.ColumnMapping{}
	for _, h := range headers {
		f := foldHeader(h)
		for _, kw := range keywords {
			if strings.Contains(f, kw.keyword) {
				m[kw.key] = h
			}
		}
	}
	return m
}
