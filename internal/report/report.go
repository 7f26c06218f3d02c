package report

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the sync state of a report.
type Status string

const (
	// StatusPending marks a report stored locally but not yet reconciled.
	StatusPending Status = "pending"
	// StatusSynced marks a report that has been reconciled.
	StatusSynced Status = "synced"
)

// Valid reports whether s is one of the two defined statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSynced
}

// CanTransition reports whether moving from s to next is allowed.
// Staying in the same status is allowed; synced -> pending is not.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return !(s == StatusSynced && next == StatusPending)
}

// ParseStatus converts a string to a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q: must be %q or %q", v, StatusPending, StatusSynced)
	}
	return s, nil
}

// Report is the sole persisted entity.
type Report struct {
	// ID is the opaque primary key, assigned once at creation.
	ID string `json:"id"`

	// ReportedAt is the creation time, always UTC.
	ReportedAt time.Time `json:"reported_at"`

	// Status is pending or synced.
	Status Status `json:"status"`

	// CreatedBy is an attribution tag (e.g. "desa-001").
	CreatedBy string `json:"created_by,omitempty"`

	// Payload holds the form fields as raw JSON, preserved verbatim apart
	// from surrounding whitespace.
	Payload json.RawMessage `json:"payload"`

	// Seq is the store-assigned insertion order. Zero until persisted.
	Seq int64 `json:"seq,omitempty"`
}

// Draft is a newly authored report before the gateway assigns its identity.
type Draft struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedBy string          `json:"created_by,omitempty"`
}

// IDGenerator generates unique report IDs.
// Implemented by UUIDv7Generator (production) and testutil.SequenceIDs (tests).
type IDGenerator interface {
	Generate() string
}

// Clock supplies creation timestamps.
// Implemented by SystemClock (production) and testutil.StepClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
