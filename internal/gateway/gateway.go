// Package gateway is the single entry point for new reports.
//
// Submit validates the payload, stamps an ID and a creation time, picks the
// initial status from connectivity, stores the report and asks the reconciler
// for a pass. It returns as soon as the report is stored; the returned
// Submission carries the pass handle for callers that want to wait.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/lapor/internal/connectivity"
	"github.com/roach88/lapor/internal/reconcile"
	"github.com/roach88/lapor/internal/report"
)

// Store is where submitted reports go.
type Store interface {
	Put(ctx context.Context, r report.Report) error
}

// Trigger starts reconciliation passes. Implemented by *reconcile.Reconciler.
type Trigger interface {
	Trigger(reason reconcile.Reason) (*reconcile.Pass, bool)
}

// PayloadValidator checks a payload before it is stored.
type PayloadValidator interface {
	Validate(payload json.RawMessage) error
}

// Submission is the outcome of a successful Submit.
type Submission struct {
	Report report.Report

	// Pass is the reconciliation pass this submission started, or nil when
	// the trigger was ignored (offline) or coalesced into a running pass.
	Pass *reconcile.Pass
}

// Gateway accepts new reports.
type Gateway struct {
	store     Store
	monitor   connectivity.Monitor
	trigger   Trigger
	clock     report.Clock
	ids       report.IDGenerator
	validator PayloadValidator
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock replaces the wall clock.
func WithClock(c report.Clock) Option {
	return func(g *Gateway) { g.clock = c }
}

// WithIDs replaces the UUIDv7 generator.
func WithIDs(ids report.IDGenerator) Option {
	return func(g *Gateway) { g.ids = ids }
}

// WithValidator replaces the CUE schema validator.
func WithValidator(v PayloadValidator) Option {
	return func(g *Gateway) { g.validator = v }
}

// New creates a gateway. trigger may be nil, in which case reports are only
// stored.
func New(st Store, monitor connectivity.Monitor, trigger Trigger, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		store:   st,
		monitor: monitor,
		trigger: trigger,
		clock:   report.SystemClock{},
		ids:     report.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.validator == nil {
		v, err := report.NewValidator()
		if err != nil {
			return nil, err
		}
		g.validator = v
	}

	return g, nil
}

// Submit stores a new report and triggers reconciliation.
//
// The payload is stored as given, minus surrounding whitespace.
// Returns a wrapped *report.ValidationError for a rejected payload, and the
// store's error (wrapped, matchable with errors.As) when Put fails. On error
// nothing was stored and no pass was triggered.
func (g *Gateway) Submit(ctx context.Context, d report.Draft) (Submission, error) {
	if err := g.validator.Validate(d.Payload); err != nil {
		return Submission{}, fmt.Errorf("submit: %w", err)
	}

	status := report.StatusPending
	if g.monitor.Online() {
		status = report.StatusSynced
	}

	r := report.Report{
		ID:         g.ids.Generate(),
		ReportedAt: g.clock.Now().UTC(),
		Status:     status,
		CreatedBy:  d.CreatedBy,
		Payload:    bytes.Clone(bytes.TrimSpace(d.Payload)),
	}

	if err := g.store.Put(ctx, r); err != nil {
		return Submission{}, fmt.Errorf("submit %s: %w", r.ID, err)
	}

	slog.Info("report submitted", "id", r.ID, "status", r.Status)

	sub := Submission{Report: r}
	if g.trigger != nil {
		sub.Pass, _ = g.trigger.Trigger(reconcile.ReasonSubmit)
	}
	return sub, nil
}
