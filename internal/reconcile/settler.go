package reconcile

import (
	"context"
	"time"

	"github.com/roach88/lapor/internal/report"
)

// DefaultSettleDelay is the simulated round trip of SimulatedSettler.
const DefaultSettleDelay = 800 * time.Millisecond

// Settler confirms a batch with the remote side before it is marked synced.
// A real backend client replaces SimulatedSettler here.
type Settler interface {
	Settle(ctx context.Context, batch []report.Report) error
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(ctx context.Context, batch []report.Report) error

// Settle implements Settler.
func (f SettlerFunc) Settle(ctx context.Context, batch []report.Report) error {
	return f(ctx, batch)
}

// SimulatedSettler accepts every batch after Delay.
type SimulatedSettler struct {
	Delay time.Duration
}

// Settle implements Settler.
func (s SimulatedSettler) Settle(ctx context.Context, _ []report.Report) error {
	if s.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
