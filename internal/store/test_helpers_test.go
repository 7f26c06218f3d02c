package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/lapor/internal/report"
)

// baseTime anchors test timestamps.
var baseTime = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport creates a report with a minimal valid payload.
// offset is added to baseTime for reported_at.
func createTestReport(id string, offset time.Duration, status report.Status) report.Report {
	return report.Report{
		ID:         id,
		ReportedAt: baseTime.Add(offset),
		Status:     status,
		CreatedBy:  "desa-001",
		Payload: json.RawMessage(fmt.Sprintf(
			`{"kecamatan":"Tempunak","desa":"Sungai Ringin","jenis_bencana":"Banjir","keterangan":%q}`, id)),
	}
}

// recordChanges registers an observer that appends every change.
func recordChanges(t *testing.T, s *Store) *[]Change {
	t.Helper()
	var changes []Change
	cancel := s.Observe(func(c Change) { changes = append(changes, c) })
	t.Cleanup(cancel)
	return &changes
}

func reportIDs(reports []report.Report) []string {
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	return ids
}
