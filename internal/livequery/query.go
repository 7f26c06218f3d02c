package livequery

import (
	"context"
	"fmt"

	"github.com/roach88/lapor/internal/report"
	"github.com/roach88/lapor/internal/store"
)

// Reader is the read side of the store a query runs against.
type Reader interface {
	QueryOrderedByTime(ctx context.Context, descending bool) ([]report.Report, error)
	QueryByStatus(ctx context.Context, status report.Status) ([]report.Report, error)
}

// Query describes a live query.
type Query interface {
	// Name identifies the query in logs and errors.
	Name() string

	// Run executes the query.
	Run(ctx context.Context, r Reader) ([]report.Report, error)

	// Affects reports whether c could change the result of Run.
	Affects(c store.Change) bool
}

// OrderedByTime is the full scan ordered by reported_at, the dashboard's
// main list.
type OrderedByTime struct {
	Descending bool
}

// Name implements Query.
func (q OrderedByTime) Name() string {
	if q.Descending {
		return "ordered_by_time_desc"
	}
	return "ordered_by_time_asc"
}

// Run implements Query.
func (q OrderedByTime) Run(ctx context.Context, r Reader) ([]report.Report, error) {
	return r.QueryOrderedByTime(ctx, q.Descending)
}

// Affects implements Query. Every write shows up in a full scan.
func (OrderedByTime) Affects(store.Change) bool {
	return true
}

// ByStatus selects the reports with one status, in insertion order.
type ByStatus struct {
	Status report.Status
}

// Name implements Query.
func (q ByStatus) Name() string {
	return fmt.Sprintf("by_status_%s", q.Status)
}

// Run implements Query.
func (q ByStatus) Run(ctx context.Context, r Reader) ([]report.Report, error) {
	return r.QueryByStatus(ctx, q.Status)
}

// Affects implements Query. A change matters if the record enters or leaves
// the status, or is rewritten while in it.
func (q ByStatus) Affects(c store.Change) bool {
	return c.Status == q.Status || c.PrevStatus == q.Status
}

// Filtered narrows another query with a dashboard filter.
type Filtered struct {
	Base   Query
	Filter report.Filter
}

// Name implements Query.
func (q Filtered) Name() string {
	return "filtered_" + q.Base.Name()
}

// Run implements Query.
func (q Filtered) Run(ctx context.Context, r Reader) ([]report.Report, error) {
	all, err := q.Base.Run(ctx, r)
	if err != nil {
		return nil, err
	}
	return q.Filter.Apply(all), nil
}

// Affects implements Query. Facets live in the payload, which a Change does
// not carry, so the base query decides.
func (q Filtered) Affects(c store.Change) bool {
	return q.Base.Affects(c)
}
