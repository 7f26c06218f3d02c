package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/lapor/internal/report"
)

// Put inserts a new report or replaces an existing one with the same ID.
//
// Replacement rewrites the payload, the creator and the facets. ReportedAt and
// the insertion seq are kept from the first insert, and a stored synced status
// is never replaced by pending. Putting an identical record twice leaves the
// store unchanged and emits a single notification (for the first put).
//
// Returns *Error with ErrCodeInvalidRecord for malformed input and
// ErrCodeStorageFault when the medium fails.
func (s *Store) Put(ctx context.Context, r report.Report) error {
	if err := checkRecord(r); err != nil {
		return invalid("put", r.ID, err)
	}

	facets, err := report.ExtractFacets(r.Payload)
	if err != nil {
		return invalid("put", r.ID, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fault("put", r.ID, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	var prev string
	err = tx.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = ?`, r.ID).Scan(&prev)
	existed := true
	if errors.Is(err, sql.ErrNoRows) {
		existed = false
	} else if err != nil {
		return fault("put", r.ID, fmt.Errorf("select existing: %w", err))
	}

	// The WHERE clause on DO UPDATE turns an identical put into a no-op
	// (zero rows affected), which keeps notifications to real changes.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO reports
		(id, reported_at, status, created_by, kecamatan, desa, jenis_bencana, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status        = CASE WHEN reports.status = 'synced' THEN 'synced' ELSE excluded.status END,
			created_by    = excluded.created_by,
			kecamatan     = excluded.kecamatan,
			desa          = excluded.desa,
			jenis_bencana = excluded.jenis_bencana,
			payload       = excluded.payload
		WHERE reports.created_by IS NOT excluded.created_by
		   OR reports.payload IS NOT excluded.payload
		   OR (reports.status = 'pending' AND excluded.status = 'synced')
	`,
		r.ID,
		r.ReportedAt.UTC().UnixNano(),
		string(r.Status),
		r.CreatedBy,
		facets.Kecamatan,
		facets.Desa,
		facets.JenisBencana,
		[]byte(r.Payload),
	)
	if err != nil {
		return fault("put", r.ID, fmt.Errorf("upsert: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fault("put", r.ID, fmt.Errorf("rows affected: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fault("put", r.ID, fmt.Errorf("commit: %w", err))
	}

	if rowsAffected == 0 {
		return nil
	}

	change := Change{Kind: ChangeInserted, ID: r.ID, Status: r.Status}
	if existed {
		change.Kind = ChangeUpdated
		change.PrevStatus = report.Status(prev)
		if change.PrevStatus == report.StatusSynced {
			change.Status = report.StatusSynced
		}
	}
	s.notify(change)

	return nil
}

// UpdateStatus changes the status of exactly one report.
//
// Returns *Error with ErrCodeNotFound if id is absent, ErrCodeInvalidTransition
// for synced -> pending, and ErrCodeStorageFault when the medium fails.
// Setting the current status again succeeds without a notification.
func (s *Store) UpdateStatus(ctx context.Context, id string, status report.Status) error {
	if !status.Valid() {
		return invalid("update status", id, fmt.Errorf("unknown status %q", status))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fault("update status", id, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	var cur string
	err = tx.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("update status", id)
	}
	if err != nil {
		return fault("update status", id, fmt.Errorf("select status: %w", err))
	}

	prev := report.Status(cur)
	if !prev.CanTransition(status) {
		return &Error{
			Code: ErrCodeInvalidTransition,
			Op:   "update status",
			ID:   id,
			Err:  fmt.Errorf("%s -> %s", prev, status),
		}
	}
	if prev == status {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE reports SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return fault("update status", id, fmt.Errorf("update: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fault("update status", id, fmt.Errorf("commit: %w", err))
	}

	s.notify(Change{Kind: ChangeUpdated, ID: id, Status: status, PrevStatus: prev})
	return nil
}

// checkRecord rejects records the store cannot hold.
func checkRecord(r report.Report) error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.ReportedAt.IsZero() {
		return errors.New("reported_at is required")
	}
	if len(r.Payload) == 0 || !json.Valid(r.Payload) {
		return errors.New("payload must be valid JSON")
	}
	return nil
}
