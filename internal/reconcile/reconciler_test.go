package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/roach88/lapor/internal/connectivity"
	"github.com/roach88/lapor/internal/report"
	"github.com/roach88/lapor/internal/store"
)

var baseTime = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func putPending(t *testing.T, s *store.Store, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, s.Put(context.Background(), report.Report{
			ID:         id,
			ReportedAt: baseTime.Add(time.Duration(i) * time.Minute),
			Status:     report.StatusPending,
			Payload:    json.RawMessage(`{"kecamatan":"Tempunak","desa":"Kupan","jenis_bencana":"Banjir"}`),
		}))
	}
}

func pendingIDs(t *testing.T, s *store.Store) []string {
	t.Helper()
	rs, err := s.QueryByStatus(context.Background(), report.StatusPending)
	require.NoError(t, err)
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

// gate is a settler that blocks until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
	ctxErr  atomic.Value
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) Settle(ctx context.Context, _ []report.Report) error {
	g.calls.Add(1)
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		g.ctxErr.Store(err)
	}
	return nil
}

func startRun(t *testing.T, r *Reconciler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func wait(t *testing.T, p *Pass) PassResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	require.NoError(t, err)
	return res
}

func instant() Option {
	return WithSettler(SimulatedSettler{})
}

func TestTrigger_OfflineIsNoOp(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")
	sw := connectivity.NewSwitch(false)

	r, err := New(s, sw, instant())
	require.NoError(t, err)
	startRun(t, r)

	p, ok := r.Trigger(ReasonManual)
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Equal(t, StateIdle, r.State())
	assert.Nil(t, r.InFlight())
	assert.Equal(t, []string{"a"}, pendingIDs(t, s))
}

func TestTrigger_OnlineSyncsSnapshot(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a", "b", "c")

	r, err := New(s, connectivity.NewSwitch(true), instant())
	require.NoError(t, err)
	startRun(t, r)

	p, ok := r.Trigger(ReasonSubmit)
	require.True(t, ok)
	assert.Equal(t, ReasonSubmit, p.Reason())

	res := wait(t, p)
	assert.True(t, res.OK())
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Snapshot)
	assert.Equal(t, []string{"a", "b", "c"}, res.Synced)
	assert.Empty(t, pendingIDs(t, s))
	assert.Equal(t, StateIdle, r.State())
}

func TestTrigger_EmptySnapshot(t *testing.T) {
	r, err := New(openStore(t), connectivity.NewSwitch(true), instant())
	require.NoError(t, err)
	startRun(t, r)

	p, ok := r.Trigger(ReasonManual)
	require.True(t, ok)
	res := wait(t, p)
	assert.True(t, res.OK())
	assert.Equal(t, 0, res.Snapshot)
	assert.Empty(t, res.Synced)
}

func TestTrigger_CoalescesWhileReconciling(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")
	g := newGate()

	r, err := New(s, connectivity.NewSwitch(true), WithSettler(g))
	require.NoError(t, err)
	startRun(t, r)

	p, ok := r.Trigger(ReasonSubmit)
	require.True(t, ok)
	<-g.entered
	assert.Equal(t, StateReconciling, r.State())
	assert.Same(t, p, r.InFlight())

	for i := 0; i < 5; i++ {
		q, ok := r.Trigger(ReasonSubmit)
		assert.False(t, ok)
		assert.Nil(t, q)
	}

	close(g.release)
	res := wait(t, p)
	assert.Equal(t, []string{"a"}, res.Synced)
	assert.Equal(t, int32(1), g.calls.Load(), "coalesced triggers start no extra pass")
	assert.Equal(t, StateIdle, r.State())
}

func TestTrigger_CoalescedBeforeWorkerPicksUp(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")

	r, err := New(s, connectivity.NewSwitch(true), instant())
	require.NoError(t, err)

	p, ok := r.Trigger(ReasonSubmit)
	require.True(t, ok)
	_, ok = r.Trigger(ReasonSubmit)
	assert.False(t, ok, "queued pass counts as in flight")

	startRun(t, r)
	wait(t, p)
}

func TestPass_SnapshotExcludesLaterRecords(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "early")
	g := newGate()

	r, err := New(s, connectivity.NewSwitch(true), WithSettler(g))
	require.NoError(t, err)
	startRun(t, r)

	p, ok := r.Trigger(ReasonSubmit)
	require.True(t, ok)
	<-g.entered

	putPending(t, s, "late")
	close(g.release)

	res := wait(t, p)
	assert.Equal(t, []string{"early"}, res.Synced)
	assert.Equal(t, []string{"late"}, pendingIDs(t, s))

	p2, ok := r.Trigger(ReasonManual)
	require.True(t, ok)
	<-g.entered
	res = wait(t, p2)
	assert.Equal(t, []string{"late"}, res.Synced)
	assert.Empty(t, pendingIDs(t, s))
}

// failingStore fails UpdateStatus for selected IDs.
type failingStore struct {
	*store.Store
	fail map[string]bool
}

var errMedium = errors.New("disk I/O error")

func (f *failingStore) UpdateStatus(ctx context.Context, id string, status report.Status) error {
	if f.fail[id] {
		return errMedium
	}
	return f.Store.UpdateStatus(ctx, id, status)
}

func TestPass_RecordFailureDoesNotAbortBatch(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a", "b", "c")
	fs := &failingStore{Store: s, fail: map[string]bool{"b": true}}

	r, err := New(fs, connectivity.NewSwitch(true), instant())
	require.NoError(t, err)
	startRun(t, r)

	p, _ := r.Trigger(ReasonManual)
	res := wait(t, p)

	assert.False(t, res.OK())
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"a", "c"}, res.Synced)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b", res.Failures[0].ID)
	assert.ErrorIs(t, res.Failures[0], errMedium)
	assert.Equal(t, []string{"b"}, pendingIDs(t, s))
}

func TestPass_SettlerErrorLeavesRecordsPending(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")
	boom := errors.New("backend unavailable")

	r, err := New(s, connectivity.NewSwitch(true), WithSettler(SettlerFunc(
		func(context.Context, []report.Report) error { return boom },
	)))
	require.NoError(t, err)
	startRun(t, r)

	p, _ := r.Trigger(ReasonManual)
	res := wait(t, p)
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, res.Synced)
	assert.Equal(t, []string{"a"}, pendingIDs(t, s))
	assert.Equal(t, StateIdle, r.State())
}

// brokenReader fails the snapshot query.
type brokenReader struct{ *store.Store }

func (brokenReader) QueryByStatus(context.Context, report.Status) ([]report.Report, error) {
	return nil, errMedium
}

func TestPass_SnapshotError(t *testing.T) {
	r, err := New(brokenReader{openStore(t)}, connectivity.NewSwitch(true), instant())
	require.NoError(t, err)
	startRun(t, r)

	p, _ := r.Trigger(ReasonManual)
	res := wait(t, p)
	assert.ErrorIs(t, res.Err, errMedium)
	assert.Equal(t, StateIdle, r.State())
}

func TestPass_SkippedWhenOfflineAtStart(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")
	sw := connectivity.NewSwitch(true)

	r, err := New(s, sw, instant())
	require.NoError(t, err)

	p, ok := r.Trigger(ReasonManual)
	require.True(t, ok)
	sw.SetOnline(false)

	startRun(t, r)
	res := wait(t, p)
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{"a"}, pendingIDs(t, s))
}

func TestPass_NotCancelledWithRun(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")
	g := newGate()

	r, err := New(s, connectivity.NewSwitch(true), WithSettler(g))
	require.NoError(t, err)
	cancel := startRun(t, r)

	p, _ := r.Trigger(ReasonManual)
	<-g.entered
	cancel()
	close(g.release)

	res := wait(t, p)
	assert.Nil(t, g.ctxErr.Load(), "pass context must not be cancelled")
	assert.Equal(t, []string{"a"}, res.Synced)
	assert.Empty(t, pendingIDs(t, s))
}

func TestRun_AbandonsQueuedPass(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")
	r, err := New(s, connectivity.NewSwitch(true), instant())
	require.NoError(t, err)

	p, ok := r.Trigger(ReasonManual)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)

	res := wait(t, p)
	assert.ErrorIs(t, res.Err, ErrStopped)
	assert.Equal(t, StateIdle, r.State())
	assert.Equal(t, []string{"a"}, pendingIDs(t, s))
}

func TestRun_SingleWorker(t *testing.T) {
	r, err := New(openStore(t), connectivity.NewSwitch(true), instant())
	require.NoError(t, err)
	startRun(t, r)

	require.Eventually(t, r.running.Load, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyRunning)
}

func TestListen_ConnectivityRestoredTriggersPass(t *testing.T) {
	s := openStore(t)
	sw := connectivity.NewSwitch(false)
	putPending(t, s, "offline-1", "offline-2")

	r, err := New(s, sw, instant())
	require.NoError(t, err)
	startRun(t, r)
	stop := r.Listen(sw)
	defer stop()

	sw.SetOnline(true)
	p := r.InFlight()
	if p != nil {
		wait(t, p)
	}
	require.Eventually(t, func() bool { return len(pendingIDs(t, s)) == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestListen_Stop(t *testing.T) {
	s := openStore(t)
	sw := connectivity.NewSwitch(false)
	putPending(t, s, "a")

	r, err := New(s, sw, instant())
	require.NoError(t, err)
	startRun(t, r)
	r.Listen(sw)()

	sw.SetOnline(true)
	assert.Nil(t, r.InFlight())
	assert.Equal(t, StateIdle, r.State())
}

func TestTrigger_ConcurrentStartsOnePassAtATime(t *testing.T) {
	s := openStore(t)
	putPending(t, s, "a")
	g := newGate()

	r, err := New(s, connectivity.NewSwitch(true), WithSettler(g))
	require.NoError(t, err)
	startRun(t, r)

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Trigger(ReasonSubmit); ok {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), started.Load())

	<-g.entered
	close(g.release)
	require.Eventually(t, func() bool { return r.State() == StateIdle }, 5*time.Second, 5*time.Millisecond)
}

func TestSimulatedSettler(t *testing.T) {
	start := time.Now()
	require.NoError(t, SimulatedSettler{Delay: 20 * time.Millisecond}.Settle(context.Background(), nil))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SimulatedSettler{Delay: time.Hour}.Settle(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, SimulatedSettler{}.Settle(ctx, nil))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "reconciling", StateReconciling.String())
	assert.Equal(t, "unknown", State(9).String())
}

// counterTotal sums every data point of an int64 counter.
func counterTotal(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	s := openStore(t)
	putPending(t, s, "a", "b")
	sw := connectivity.NewSwitch(false)
	g := newGate()
	fs := &failingStore{Store: s, fail: map[string]bool{"b": true}}

	r, err := New(fs, sw, WithSettler(g), WithMeterProvider(mp))
	require.NoError(t, err)
	startRun(t, r)

	r.Trigger(ReasonSubmit) // offline
	sw.SetOnline(true)
	p, ok := r.Trigger(ReasonSubmit)
	require.True(t, ok)
	<-g.entered
	r.Trigger(ReasonSubmit)
	r.Trigger(ReasonConnectivityRestored)
	close(g.release)
	wait(t, p)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), counterTotal(t, rm, "lapor.reconcile.passes"))
	assert.Equal(t, int64(1), counterTotal(t, rm, "lapor.reconcile.records.synced"))
	assert.Equal(t, int64(1), counterTotal(t, rm, "lapor.reconcile.records.failed"))
	assert.Equal(t, int64(2), counterTotal(t, rm, "lapor.reconcile.triggers.coalesced"))
	assert.Equal(t, int64(1), counterTotal(t, rm, "lapor.reconcile.triggers.offline"))
}

func TestRecordFailureError(t *testing.T) {
	f := RecordFailure{ID: "x", Err: errMedium}
	assert.Equal(t, fmt.Sprintf("record x: %v", errMedium), f.Error())
}
