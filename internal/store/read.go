package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/lapor/internal/report"
)

const reportColumns = `seq, id, reported_at, status, created_by, payload`

// QueryOrderedByTime returns every report ordered by reported_at.
// Ties are broken by insertion order in the same direction, so the newest
// insertion comes first when descending.
//
// Returns empty slice (not nil) if the store is empty.
func (s *Store) QueryOrderedByTime(ctx context.Context, descending bool) ([]report.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY reported_at ASC, seq ASC`
	if descending {
		query = `SELECT ` + reportColumns + ` FROM reports ORDER BY reported_at DESC, seq DESC`
	}
	return s.queryReports(ctx, "query ordered by time", query)
}

// QueryByStatus returns every report with the given status.
// Callers must not depend on the order; it happens to be insertion order.
func (s *Store) QueryByStatus(ctx context.Context, status report.Status) ([]report.Report, error) {
	if !status.Valid() {
		return nil, invalid("query by status", "", fmt.Errorf("unknown status %q", status))
	}
	return s.queryReports(ctx, "query by status",
		`SELECT `+reportColumns+` FROM reports WHERE status = ? ORDER BY seq ASC`,
		string(status))
}

// Get retrieves a single report by ID.
// Returns *Error with ErrCodeNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (report.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, notFound("get", id)
	}
	if err != nil {
		return report.Report{}, fault("get", id, err)
	}
	return r, nil
}

// Count returns the number of stored reports.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fault("count", "", err)
	}
	return n, nil
}

// CountByStatus returns the number of reports per status.
// Both statuses are always present in the map.
func (s *Store) CountByStatus(ctx context.Context) (map[report.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, fault("count by status", "", err)
	}
	defer rows.Close()

	counts := map[report.Status]int{
		report.StatusPending: 0,
		report.StatusSynced:  0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fault("count by status", "", fmt.Errorf("scan: %w", err))
		}
		counts[report.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fault("count by status", "", fmt.Errorf("iterate: %w", err))
	}
	return counts, nil
}

// FacetValues lists the distinct facet values present in the store, the
// choices a dashboard offers in its filter dropdowns.
type FacetValues struct {
	Kecamatan    []string `json:"kecamatan"`
	JenisBencana []string `json:"jenis_bencana"`
}

// DistinctFacets returns the distinct non-empty kecamatan and jenis_bencana
// values, each sorted.
func (s *Store) DistinctFacets(ctx context.Context) (FacetValues, error) {
	kec, err := s.distinct(ctx, "kecamatan")
	if err != nil {
		return FacetValues{}, err
	}
	jenis, err := s.distinct(ctx, "jenis_bencana")
	if err != nil {
		return FacetValues{}, err
	}
	return FacetValues{Kecamatan: kec, JenisBencana: jenis}, nil
}

// distinct reads one facet column. column is always a constant from this file.
func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM reports WHERE `+column+` <> '' ORDER BY `+column+` COLLATE BINARY ASC`)
	if err != nil {
		return nil, fault("distinct "+column, "", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fault("distinct "+column, "", fmt.Errorf("scan: %w", err))
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("distinct "+column, "", fmt.Errorf("iterate: %w", err))
	}
	return values, nil
}

// queryReports runs a report query and materializes every row.
func (s *Store) queryReports(ctx context.Context, op, query string, args ...any) ([]report.Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault(op, "", err)
	}
	defer rows.Close()

	reports := []report.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fault(op, "", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fault(op, "", fmt.Errorf("iterate reports: %w", err))
	}

	return reports, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReport scans one row of reportColumns.
func scanReport(row rowScanner) (report.Report, error) {
	var r report.Report
	var reportedAt int64
	var status string
	var payload []byte

	if err := row.Scan(&r.Seq, &r.ID, &reportedAt, &status, &r.CreatedBy, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report.Report{}, err
		}
		return report.Report{}, fmt.Errorf("scan report: %w", err)
	}

	r.ReportedAt = time.Unix(0, reportedAt).UTC()
	r.Status = report.Status(status)
	if !r.Status.Valid() {
		return report.Report{}, fmt.Errorf("scan report %s: corrupt status %q", r.ID, status)
	}
	r.Payload = json.RawMessage(payload)

	return r, nil
}
