// Package store provides SQLite-backed durable storage for disaster reports.
//
// The store is a single keyed table with secondary access paths:
//   - id: primary key, a put with an existing id replaces the record
//   - status: serves the reconciler's pending scan
//   - (reported_at, seq): serves the ordered full scan behind the live list
//   - kecamatan, desa, jenis_bencana: facets extracted from the payload
//
// # Critical Patterns
//
// Forward-Only Status
//   - UpdateStatus rejects synced -> pending with INVALID_TRANSITION
//   - Put never moves an existing synced record back to pending
//
// Immutable Identity
//   - id, reported_at and seq are fixed by the first insert
//   - Put replaces payload, creator and (forward) status only
//
// Total Ordering
//   - ORDER BY reported_at, seq in the same direction
//   - seq is AUTOINCREMENT, so ties resolve by insertion order
//
// Single Writer
//   - All writes hold Store.writeMu for the whole transaction plus
//     observer notification, so observers see changes in commit order
//   - Observers run synchronously and must not write to the store
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Every failure of the underlying medium is returned as a *Error with code
// STORAGE_FAULT; nothing is retried or swallowed.
package store
