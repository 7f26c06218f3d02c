package export

import (
	"sort"

	"github.com/roach88/lapor/internal/report"
)

// Summary aggregates a report set for the recap header and dashboard charts.
type Summary struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Synced  int `json:"synced"`

	// House damage totals: heavy (RB), moderate (RS), light (RR).
	RB int64 `json:"rb"`
	RS int64 `json:"rs"`
	RR int64 `json:"rr"`

	Jiwa      int64 `json:"jiwa"`
	Pengungsi int64 `json:"pengungsi"`

	// ByJenis counts reports per disaster type, sorted by type.
	ByJenis []JenisCount `json:"by_jenis"`
}

// JenisCount is the number of reports of one disaster type.
type JenisCount struct {
	Jenis string `json:"jenis"`
	Total int    `json:"total"`
}

// Summarize computes the totals for reports.
func Summarize(reports []report.Report) (Summary, error) {
	s := Summary{ByJenis: []JenisCount{}}
	byJenis := make(map[string]int)

	for _, r := range reports {
		d, err := report.DecodeDetails(r.Payload)
		if err != nil {
			return Summary{}, err
		}

		s.Total++
		switch r.Status {
		case report.StatusPending:
			s.Pending++
		case report.StatusSynced:
			s.Synced++
		}

		s.RB += report.Count(d.RumahRB)
		s.RS += report.Count(d.RumahRS)
		s.RR += report.Count(d.RumahRR)
		s.Jiwa += report.Count(d.Jiwa)
		s.Pengungsi += report.Count(d.Pengungsi)
		byJenis[d.JenisBencana]++
	}

	for jenis, n := range byJenis {
		s.ByJenis = append(s.ByJenis, JenisCount{Jenis: jenis, Total: n})
	}
	sort.Slice(s.ByJenis, func(i, j int) bool { return s.ByJenis[i].Jenis < s.ByJenis[j].Jenis })

	return s, nil
}
