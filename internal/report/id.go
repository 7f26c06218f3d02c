package report

import "github.com/google/uuid"

// UUIDv7Generator generates time-sortable UUIDv7 report IDs.
//
// UUIDv7 embeds a millisecond timestamp in the most significant bits, so IDs
// minted on the same device sort roughly by creation time. That is only a
// debugging convenience; ordering always uses ReportedAt.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
