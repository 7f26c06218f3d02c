// Package report defines the disaster-impact report record shared by the
// store, the live queries, the reconciler and the submission gateway.
//
// A Report carries four fields the core owns (ID, ReportedAt, Status and
// CreatedBy) and an opaque Payload. The payload holds the form's
// classification, location and quantitative fields as raw JSON and is kept
// byte-for-byte; the core only peeks into it to extract the indexed facets
// (kecamatan, desa, jenis_bencana) and, for exports, the recap columns.
//
// # Status Lifecycle
//
// Status is forward-only:
//
//	pending -> synced
//
// A record created while offline starts as pending and is flipped by the
// reconciler once connectivity returns. A record created while online starts
// as synced. No other transition exists.
package report
