package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/lapor/internal/report"
	"github.com/roach88/lapor/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step=%d %s%s\n", i+1, ev.Step, ev.Type, describe(ev))
		}
	}

	return buf.String()
}

func describe(ev TraceEvent) string {
	switch ev.Type {
	case EventSubmit:
		return fmt.Sprintf(" %s (%s)", ev.ID, ev.Status)
	case EventConnectivity:
		if ev.Online != nil && *ev.Online {
			return " online"
		}
		return " offline"
	case EventPass:
		return fmt.Sprintf(" %s synced=%v", ev.Reason, ev.Synced)
	case EventDelivery:
		return fmt.Sprintf(" %v", ev.Reports)
	case EventRejected:
		return " " + ev.Error
	}
	return ""
}

// assertFinalStatus checks the stored status of one report.
func assertFinalStatus(ctx context.Context, st *store.Store, a Assertion) error {
	r, err := st.Get(ctx, a.ID)
	if store.IsNotFound(err) {
		return &AssertionError{
			Type:     AssertFinalStatus,
			Expected: fmt.Sprintf("%s has status %s", a.ID, a.Status),
			Actual:   "report not found",
		}
	}
	if err != nil {
		return fmt.Errorf("final_status: %w", err)
	}
	if string(r.Status) != a.Status {
		return &AssertionError{
			Type:     AssertFinalStatus,
			Expected: fmt.Sprintf("%s has status %s", a.ID, a.Status),
			Actual:   fmt.Sprintf("status %s", r.Status),
		}
	}
	return nil
}

// assertStatusCount checks how many reports have a status.
func assertStatusCount(ctx context.Context, st *store.Store, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("status_count: count is required")
	}
	rs, err := st.QueryByStatus(ctx, report.Status(a.Status))
	if err != nil {
		return fmt.Errorf("status_count: %w", err)
	}
	if len(rs) != *a.Count {
		return &AssertionError{
			Type:     AssertStatusCount,
			Expected: fmt.Sprintf("%d %s report(s)", *a.Count, a.Status),
			Actual:   fmt.Sprintf("%d", len(rs)),
		}
	}
	return nil
}

// assertOrder checks the final newest-first order of the whole store.
func assertOrder(ctx context.Context, st *store.Store, a Assertion) error {
	rs, err := st.QueryOrderedByTime(ctx, true)
	if err != nil {
		return fmt.Errorf("order: %w", err)
	}
	got := make([]string, 0, len(rs))
	for _, r := range rs {
		got = append(got, r.ID)
	}
	if !slices.Equal(got, a.IDs) {
		return &AssertionError{
			Type:     AssertOrder,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertLastDelivery checks the IDs of the last live-query delivery.
func assertLastDelivery(result *Result, a Assertion) error {
	deliveries := result.Deliveries()
	if len(deliveries) == 0 {
		return &AssertionError{
			Type:     AssertLastDelivery,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   "no delivery",
			Trace:    result.Trace,
		}
	}

	last := deliveries[len(deliveries)-1]
	got := make([]string, 0, len(last.Reports))
	for _, item := range last.Reports {
		id, _, _ := strings.Cut(item, ":")
		got = append(got, id)
	}
	if !slices.Equal(got, a.IDs) {
		return &AssertionError{
			Type:     AssertLastDelivery,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertDeliveryCount checks the number of live-query deliveries.
func assertDeliveryCount(result *Result, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("delivery_count: count is required")
	}
	n := len(result.Deliveries())
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertDeliveryCount,
			Expected: fmt.Sprintf("%d deliveries", *a.Count),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and store.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, st *store.Store, result *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertFinalStatus:
			err = assertFinalStatus(ctx, st, a)
		case AssertStatusCount:
			err = assertStatusCount(ctx, st, a)
		case AssertOrder:
			err = assertOrder(ctx, st, a)
		case AssertLastDelivery:
			err = assertLastDelivery(result, a)
		case AssertDeliveryCount:
			err = assertDeliveryCount(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
