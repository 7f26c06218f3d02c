// Package export turns a report set into the district recap: one CSV row per
// report plus summary totals.
//
// Reports are written in the order given; callers pass the live query result
// (newest first) after applying their filter.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/roach88/lapor/internal/report"
)

// TimeLayout formats the Waktu column: UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Header is the recap column order.
var Header = []string{
	"Kecamatan", "Desa", "Jenis",
	"KK", "Jiwa", "Meninggal", "Hilang", "Luka Berat", "Luka Ringan", "Pengungsi",
	"RB", "RS", "RR", "Jembatan", "Fasilitas",
	"Lat", "Lng", "Waktu", "Status",
}

// Row renders one report. Missing counts are written as 0 and missing
// coordinates as empty cells.
func Row(r report.Report) ([]string, error) {
	d, err := report.DecodeDetails(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", r.ID, err)
	}

	count := func(v *int64) string {
		return strconv.FormatInt(report.Count(v), 10)
	}

	return []string{
		d.Kecamatan,
		d.Desa,
		d.JenisBencana,
		count(d.KK),
		count(d.Jiwa),
		count(d.Meninggal),
		count(d.Hilang),
		count(d.LukaBerat),
		count(d.LukaRingan),
		count(d.Pengungsi),
		count(d.RumahRB),
		count(d.RumahRS),
		count(d.RumahRR),
		count(d.Jembatan),
		count(d.FasilitasLainnya),
		string(d.Lat),
		string(d.Lng),
		r.ReportedAt.UTC().Format(TimeLayout),
		string(r.Status),
	}, nil
}

// WriteCSV writes the header and one row per report.
func WriteCSV(w io.Writer, reports []report.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range reports {
		row, err := Row(r)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
