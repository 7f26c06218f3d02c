package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/lapor/internal/connectivity"
	"github.com/roach88/lapor/internal/report"
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("reconcile: already running")

// ErrStopped is the Err of a queued pass that Run abandoned on shutdown.
var ErrStopped = errors.New("reconcile: stopped before pass started")

// Store is the part of the record store a pass needs.
type Store interface {
	QueryByStatus(ctx context.Context, status report.Status) ([]report.Report, error)
	UpdateStatus(ctx context.Context, id string, status report.Status) error
}

// Reconciler runs reconciliation passes one at a time.
//
// Thread-safety model:
//   - Trigger / Listen / State: safe from any goroutine
//   - Run: exactly one active call; passes execute on its goroutine
type Reconciler struct {
	store   Store
	monitor connectivity.Monitor
	settler Settler
	meters  metric.MeterProvider
	metrics *metrics

	state    atomic.Int32
	running  atomic.Bool
	current  atomic.Pointer[Pass]
	requests chan *Pass
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSettler replaces the default SimulatedSettler.
func WithSettler(s Settler) Option {
	return func(r *Reconciler) { r.settler = s }
}

// WithMeterProvider sets where metrics go. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Reconciler) { r.meters = mp }
}

// New creates a reconciler. Nothing happens until Run is started.
func New(st Store, monitor connectivity.Monitor, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		store:    st,
		monitor:  monitor,
		settler:  SimulatedSettler{Delay: DefaultSettleDelay},
		meters:   otel.GetMeterProvider(),
		requests: make(chan *Pass, 1),
	}
	for _, opt := range opts {
		opt(r)
	}

	m, err := newMetrics(r.meters)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	r.metrics = m

	return r, nil
}

// State returns the current state.
func (r *Reconciler) State() State {
	return State(r.state.Load())
}

// InFlight returns the queued or running pass, or nil when idle.
func (r *Reconciler) InFlight() *Pass {
	return r.current.Load()
}

// Trigger asks for a pass. It returns the new pass and true when one was
// started, or nil and false when the trigger was ignored (offline) or
// coalesced into the pass already in flight.
func (r *Reconciler) Trigger(reason Reason) (*Pass, bool) {
	ctx := context.Background()

	if !r.monitor.Online() {
		r.metrics.recordOffline(ctx, reason)
		slog.Debug("sync trigger ignored while offline", "reason", reason)
		return nil, false
	}

	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateReconciling)) {
		r.metrics.recordCoalesced(ctx, reason)
		slog.Debug("sync trigger coalesced", "reason", reason)
		return nil, false
	}

	p := newPass(reason)
	r.current.Store(p)

	// The CAS above admits one pass at a time and the worker drains the
	// channel before returning to Idle, so the buffer is always free here.
	r.requests <- p

	slog.Debug("sync pass queued", "reason", reason)
	return p, true
}

// Listen turns connectivity-restored events into triggers. The returned
// function stops listening.
func (r *Reconciler) Listen(n connectivity.Notifier) (cancel func()) {
	return n.OnRestored(func() {
		r.Trigger(ReasonConnectivityRestored)
	})
}

// Run executes passes until ctx is done. A pass already running when ctx is
// cancelled completes first; a pass still queued is finished with ErrStopped.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	for {
		if ctx.Err() != nil {
			r.abandon()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			r.abandon()
			return ctx.Err()
		case p := <-r.requests:
			r.runPass(context.WithoutCancel(ctx), p)
		}
	}
}

// abandon finishes a queued pass that will never run.
func (r *Reconciler) abandon() {
	select {
	case p := <-r.requests:
		r.complete(p, PassResult{Reason: p.reason, Err: ErrStopped})
	default:
	}
}

func (r *Reconciler) runPass(ctx context.Context, p *Pass) {
	start := time.Now()
	res := r.reconcile(ctx, p.reason)
	res.Duration = time.Since(start)

	r.metrics.recordPass(ctx, res)
	r.complete(p, res)
}

// complete returns to Idle before waking waiters, so a waiter that triggers
// again is not coalesced into the pass it just waited for.
func (r *Reconciler) complete(p *Pass, res PassResult) {
	r.current.Store(nil)
	r.state.Store(int32(StateIdle))
	p.finish(res)
}

// reconcile is one pass: snapshot, settle, flip.
func (r *Reconciler) reconcile(ctx context.Context, reason Reason) PassResult {
	res := PassResult{Reason: reason, Synced: []string{}, Failures: []RecordFailure{}}

	if !r.monitor.Online() {
		res.Skipped = true
		slog.Debug("sync pass skipped, offline", "reason", reason)
		return res
	}

	pending, err := r.store.QueryByStatus(ctx, report.StatusPending)
	if err != nil {
		res.Err = fmt.Errorf("snapshot pending: %w", err)
		slog.Error("sync pass failed", "reason", reason, "error", res.Err)
		return res
	}
	res.Snapshot = len(pending)
	if len(pending) == 0 {
		slog.Debug("sync pass found nothing pending", "reason", reason)
		return res
	}

	if err := r.settler.Settle(ctx, pending); err != nil {
		res.Err = fmt.Errorf("settle: %w", err)
		slog.Error("sync pass failed", "reason", reason, "pending", len(pending), "error", res.Err)
		return res
	}

	for _, rec := range pending {
		if err := r.store.UpdateStatus(ctx, rec.ID, report.StatusSynced); err != nil {
			res.Failures = append(res.Failures, RecordFailure{ID: rec.ID, Err: err})
			slog.Warn("report not synced", "id", rec.ID, "error", err)
			continue
		}
		res.Synced = append(res.Synced, rec.ID)
	}

	slog.Info("sync pass complete",
		"reason", reason,
		"pending", res.Snapshot,
		"synced", len(res.Synced),
		"failed", len(res.Failures),
	)
	return res
}
