package reconcile

import (
	"context"
	"fmt"
	"time"
)

// RecordFailure is one record a pass could not mark synced.
type RecordFailure struct {
	ID  string
	Err error
}

func (f RecordFailure) Error() string {
	return fmt.Sprintf("record %s: %v", f.ID, f.Err)
}

// Unwrap returns the store error.
func (f RecordFailure) Unwrap() error {
	return f.Err
}

// PassResult is the outcome of one reconciliation pass.
type PassResult struct {
	Reason Reason

	// Skipped is set when the device was offline when the pass started.
	Skipped bool

	// Snapshot is the number of pending records the pass picked up.
	Snapshot int

	// Synced lists the IDs marked synced, in snapshot order.
	Synced []string

	Failures []RecordFailure

	// Err is a pass-level failure: the snapshot query or the settler failed,
	// and no record was touched.
	Err error

	Duration time.Duration
}

// OK reports whether the pass finished without any failure.
func (r PassResult) OK() bool {
	return r.Err == nil && len(r.Failures) == 0
}

// Pass is a handle on one queued or running pass.
type Pass struct {
	reason Reason
	done   chan struct{}
	result PassResult
}

func newPass(reason Reason) *Pass {
	return &Pass{reason: reason, done: make(chan struct{})}
}

// Reason returns what triggered the pass.
func (p *Pass) Reason() Reason {
	return p.reason
}

// Done is closed when the pass has finished.
func (p *Pass) Done() <-chan struct{} {
	return p.done
}

// Result returns the outcome. Only meaningful after Done is closed.
func (p *Pass) Result() PassResult {
	select {
	case <-p.done:
		return p.result
	default:
		return PassResult{Reason: p.reason}
	}
}

// Wait blocks until the pass finishes or ctx is done.
func (p *Pass) Wait(ctx context.Context) (PassResult, error) {
	select {
	case <-ctx.Done():
		return PassResult{Reason: p.reason}, ctx.Err()
	case <-p.done:
		return p.result, nil
	}
}

func (p *Pass) finish(r PassResult) {
	p.result = r
	close(p.done)
}
