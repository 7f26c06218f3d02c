package report

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// All is the dashboard's "no filter" choice.
const All = "Semua"

// Filter narrows a report list the way the dashboard does: by kecamatan, by
// disaster type and by creator. Empty fields and All match everything.
//
// Comparison is Unicode-normalized (NFC) and case-folded, so "Kelam Permai"
// matches "kelam permai" and composed/decomposed accents compare equal.
type Filter struct {
	Kecamatan    string `json:"kecamatan,omitempty" yaml:"kecamatan,omitempty"`
	JenisBencana string `json:"jenis_bencana,omitempty" yaml:"jenis_bencana,omitempty"`
	CreatedBy    string `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// IsZero reports whether the filter matches every report.
func (f Filter) IsZero() bool {
	return isAll(f.Kecamatan) && isAll(f.JenisBencana) && isAll(f.CreatedBy)
}

// Match reports whether r passes the filter.
// A payload that cannot be decoded only matches a filter with no facet terms.
func (f Filter) Match(r Report) bool {
	if !isAll(f.CreatedBy) && !equalFold(f.CreatedBy, r.CreatedBy) {
		return false
	}
	if isAll(f.Kecamatan) && isAll(f.JenisBencana) {
		return true
	}
	facets, err := ExtractFacets(r.Payload)
	if err != nil {
		return false
	}
	if !isAll(f.Kecamatan) && !equalFold(f.Kecamatan, facets.Kecamatan) {
		return false
	}
	if !isAll(f.JenisBencana) && !equalFold(f.JenisBencana, facets.JenisBencana) {
		return false
	}
	return true
}

// Apply returns the reports that pass the filter, preserving order.
// Always returns a non-nil slice.
func (f Filter) Apply(reports []Report) []Report {
	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == All
}

// foldKey normalizes a facet value for comparison.
func foldKey(v string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(v)))
}

func equalFold(a, b string) bool {
	return foldKey(a) == foldKey(b)
}
