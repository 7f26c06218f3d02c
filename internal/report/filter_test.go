package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func filterFixture() []Report {
	return []Report{
		{ID: "r1", CreatedBy: "desa-001", Payload: json.RawMessage(`{"kecamatan":"Tempunak","jenis_bencana":"Banjir"}`)},
		{ID: "r2", CreatedBy: "user", Payload: json.RawMessage(`{"kecamatan":"Sepauk","jenis_bencana":"Banjir"}`)},
		{ID: "r3", CreatedBy: "desa-001", Payload: json.RawMessage(`{"kecamatan":"Tempunak","jenis_bencana":"Kebakaran"}`)},
	}
}

func ids(reports []Report) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.ID)
	}
	return out
}

func TestFilter_ZeroMatchesAll(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.True(t, Filter{Kecamatan: All, JenisBencana: All}.IsZero())
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(Filter{}.Apply(filterFixture())))
}

func TestFilter_Kecamatan(t *testing.T) {
	got := Filter{Kecamatan: "tempunak"}.Apply(filterFixture())
	assert.Equal(t, []string{"r1", "r3"}, ids(got))
}

func TestFilter_Combined(t *testing.T) {
	got := Filter{Kecamatan: "Tempunak", JenisBencana: "Banjir"}.Apply(filterFixture())
	assert.Equal(t, []string{"r1"}, ids(got))
}

func TestFilter_CreatedBy(t *testing.T) {
	got := Filter{CreatedBy: "desa-001"}.Apply(filterFixture())
	assert.Equal(t, []string{"r1", "r3"}, ids(got))
}

func TestFilter_UnicodeNormalization(t *testing.T) {
	// Stored decomposed ("e" + combining acute), queried composed and upper-case.
	r := Report{ID: "x", Payload: json.RawMessage(`{"kecamatan":"Cafe\u0301"}`)}
	assert.True(t, Filter{Kecamatan: "CAFÉ"}.Match(r))
}

func TestFilter_ApplyEmpty(t *testing.T) {
	got := Filter{Kecamatan: "Nowhere"}.Apply(filterFixture())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
