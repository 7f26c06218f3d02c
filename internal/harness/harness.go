package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/lapor/internal/connectivity"
	"github.com/roach88/lapor/internal/gateway"
	"github.com/roach88/lapor/internal/livequery"
	"github.com/roach88/lapor/internal/reconcile"
	"github.com/roach88/lapor/internal/report"
	"github.com/roach88/lapor/internal/store"
	"github.com/roach88/lapor/internal/testutil"
)

// passTimeout bounds how long a step waits for its reconciliation pass.
const passTimeout = 10 * time.Second

// Harness holds the pipeline of one scenario run.
type Harness struct {
	store   *store.Store
	sw      *connectivity.Switch
	rec     *reconcile.Reconciler
	gateway *gateway.Gateway
	clock   *testutil.StepClock

	mu     sync.Mutex
	result *Result
	step   int
}

// deferredTrigger swallows the gateway's trigger so the harness can log the
// submission first and then trigger the pass itself.
type deferredTrigger struct{}

func (deferredTrigger) Trigger(reconcile.Reason) (*reconcile.Pass, bool) {
	return nil, false
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// An error is returned only when the pipeline cannot be set up or a pass
// does not finish; scenario failures are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sw := connectivity.NewSwitch(scenario.Online)
	rec, err := reconcile.New(st, sw, reconcile.WithSettler(reconcile.SimulatedSettler{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}

	clock := testutil.NewStepClock(testutil.DefaultEpoch, time.Minute)
	gw, err := gateway.New(st, sw, deferredTrigger{},
		gateway.WithClock(clock),
		gateway.WithIDs(testutil.NewSequenceIDs("r")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	h := &Harness{
		store:   st,
		sw:      sw,
		rec:     rec,
		gateway: gw,
		clock:   clock,
		result:  NewResult(),
		step:    -1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		rec.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	stopListen := rec.Listen(sw)
	defer stopListen()

	hub := livequery.NewHub(st)
	defer hub.Close()

	var q livequery.Query = livequery.OrderedByTime{Descending: true}
	if !scenario.Filter.IsZero() {
		q = livequery.Filtered{Base: q, Filter: scenario.Filter}
	}
	if _, err := hub.Subscribe(ctx, q, h.onDelivery, h.onFault); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	for i, step := range scenario.Steps {
		h.setStep(i)
		if err := h.executeStep(ctx, scenario, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, st, h.snapshot(), scenario.Assertions) {
		h.addError(msg)
	}

	return h.snapshot(), nil
}

func (h *Harness) executeStep(ctx context.Context, scenario *Scenario, step Step) error {
	switch {
	case step.Submit != nil:
		return h.executeSubmit(ctx, scenario, step)

	case step.Connectivity != "":
		online := step.Connectivity == "online"
		h.record(TraceEvent{Type: EventConnectivity, Online: &online})
		h.sw.SetOnline(online)
		// A restore triggers synchronously through the listener.
		return h.awaitPass(h.rec.InFlight())

	case step.Sync != "":
		p, _ := h.rec.Trigger(reconcile.Reason(step.Sync))
		return h.awaitPass(p)
	}
	return nil
}

func (h *Harness) executeSubmit(ctx context.Context, scenario *Scenario, step Step) error {
	payload, err := json.Marshal(step.Submit.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if step.Submit.At != "" {
		at, err := time.Parse(time.RFC3339Nano, step.Submit.At)
		if err != nil {
			return fmt.Errorf("parse at: %w", err)
		}
		h.clock.Set(at)
	}

	createdBy := step.Submit.CreatedBy
	if createdBy == "" {
		createdBy = scenario.CreatedBy
	}

	sub, err := h.gateway.Submit(ctx, report.Draft{Payload: payload, CreatedBy: createdBy})
	expect := step.Expect
	if err != nil {
		var ve *report.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		h.record(TraceEvent{Type: EventRejected, Error: ve.Field})
		if expect == nil || !expect.Rejected {
			h.addError(fmt.Sprintf("step %d: submit rejected: %v", h.currentStep(), err))
		}
		return nil
	}

	h.mu.Lock()
	h.result.IDs = append(h.result.IDs, sub.Report.ID)
	h.mu.Unlock()
	h.record(TraceEvent{Type: EventSubmit, ID: sub.Report.ID, Status: string(sub.Report.Status)})

	if expect != nil {
		if expect.Rejected {
			h.addError(fmt.Sprintf("step %d: expected rejection, got %s", h.currentStep(), sub.Report.ID))
		}
		if expect.Status != "" && expect.Status != string(sub.Report.Status) {
			h.addError(fmt.Sprintf("step %d: expected status %s, got %s",
				h.currentStep(), expect.Status, sub.Report.Status))
		}
	}

	p, _ := h.rec.Trigger(reconcile.ReasonSubmit)
	return h.awaitPass(p)
}

// awaitPass waits for p (may be nil) and records it in the trace.
func (h *Harness) awaitPass(p *reconcile.Pass) error {
	if p == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	res, err := p.Wait(ctx)
	if err != nil {
		return fmt.Errorf("pass did not finish: %w", err)
	}

	ev := TraceEvent{
		Type:    EventPass,
		Reason:  string(res.Reason),
		Skipped: res.Skipped,
		Synced:  res.Synced,
	}
	for _, f := range res.Failures {
		ev.Failed = append(ev.Failed, f.ID)
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	h.record(ev)
	return nil
}

func (h *Harness) onDelivery(rs []report.Report) {
	items := make([]string, 0, len(rs))
	for _, r := range rs {
		items = append(items, r.ID+":"+string(r.Status))
	}
	h.record(TraceEvent{Type: EventDelivery, Reports: items})
}

func (h *Harness) onFault(err error) {
	h.addError(fmt.Sprintf("live query fault: %v", err))
}

func (h *Harness) record(ev TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev.Step = h.step
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) addError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.AddError(msg)
}

func (h *Harness) setStep(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.step = i
}

func (h *Harness) currentStep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.step
}

// snapshot returns the result; callers must not mutate it while steps run.
func (h *Harness) snapshot() *Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}
