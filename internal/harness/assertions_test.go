package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertionError_Format(t *testing.T) {
	online := true
	err := &AssertionError{
		Type:     AssertLastDelivery,
		Expected: "[r-0001]",
		Actual:   "[]",
		Trace: []TraceEvent{
			{Step: -1, Type: EventDelivery},
			{Step: 0, Type: EventSubmit, ID: "r-0001", Status: "pending"},
			{Step: 1, Type: EventConnectivity, Online: &online},
			{Step: 1, Type: EventPass, Reason: "connectivity_restored", Synced: []string{"r-0001"}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: last_delivery")
	assert.Contains(t, msg, "Expected: [r-0001]")
	assert.Contains(t, msg, "Actual: []")
	assert.Contains(t, msg, "[2] step=0 submit r-0001 (pending)")
	assert.Contains(t, msg, "[3] step=1 connectivity online")
	assert.Contains(t, msg, "[4] step=1 pass connectivity_restored synced=[r-0001]")
}

func TestAssertLastDelivery_NoDelivery(t *testing.T) {
	err := assertLastDelivery(NewResult(), Assertion{Type: AssertLastDelivery, IDs: []string{}})
	assert.ErrorContains(t, err, "no delivery")
}

func TestAssertLastDelivery_StripsStatus(t *testing.T) {
	r := NewResult()
	r.Trace = append(r.Trace, TraceEvent{Type: EventDelivery, Reports: []string{"r-0002:synced", "r-0001:pending"}})

	assert.NoError(t, assertLastDelivery(r, Assertion{IDs: []string{"r-0002", "r-0001"}}))
}

func TestAssertDeliveryCount_RequiresCount(t *testing.T) {
	assert.ErrorContains(t, assertDeliveryCount(NewResult(), Assertion{}), "count is required")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(context.Background(), nil, NewResult(), []Assertion{{Type: "bogus"}})
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "bogus"`)
}
