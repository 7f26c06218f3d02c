package harness

// Trace event types.
const (
	EventSubmit       = "submit"
	EventRejected     = "rejected"
	EventConnectivity = "connectivity"
	EventPass         = "pass"
	EventDelivery     = "delivery"
)

// TraceEvent is one observable step of a scenario run.
type TraceEvent struct {
	// Step is the index of the scenario step that caused the event;
	// -1 for the initial live-query delivery.
	Step int    `json:"step"`
	Type string `json:"type"`

	// submit
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`

	// connectivity
	Online *bool `json:"online,omitempty"`

	// pass
	Reason  string   `json:"reason,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
	Synced  []string `json:"synced,omitempty"`
	Failed  []string `json:"failed,omitempty"`

	// delivery: "id:status" newest first
	Reports []string `json:"reports,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages; empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// IDs lists the IDs of accepted submissions in step order.
	IDs []string `json:"ids"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		IDs:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Deliveries returns the delivery events in order.
func (r *Result) Deliveries() []TraceEvent {
	out := []TraceEvent{}
	for _, e := range r.Trace {
		if e.Type == EventDelivery {
			out = append(out, e)
		}
	}
	return out
}
