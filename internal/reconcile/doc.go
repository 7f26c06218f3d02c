// Package reconcile moves pending reports to synced.
//
// A Reconciler owns one worker goroutine (Run). Trigger decides at call time
// whether a pass starts:
//
//	offline          -> no-op, nothing queued
//	Idle             -> Reconciling, one pass handed to the worker
//	Reconciling      -> coalesced: dropped and counted
//
// A pass snapshots the pending set, waits on the Settler, then marks every
// record in the snapshot synced. Records that turn pending after the snapshot
// wait for the next trigger. Per-record failures are collected in the
// PassResult and never abort the rest of the batch. A pass that has started
// runs to completion even if Run's context is cancelled.
package reconcile
