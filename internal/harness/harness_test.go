package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func validPayload() map[string]any {
	return map[string]any{"kecamatan": "Tempunak", "desa": "Kupan", "jenis_bencana": "Banjir"}
}

func TestRun_OnlineSubmission(t *testing.T) {
	sc := &Scenario{
		Name:        "online",
		Description: "online submit",
		Online:      true,
		Steps: []Step{
			{Submit: &SubmitStep{Payload: validPayload()}, Expect: &ExpectClause{Status: "synced"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalStatus, ID: "r-0001", Status: "synced"},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"r-0001"}, result.IDs)

	types := make([]string, 0, len(result.Trace))
	for _, ev := range result.Trace {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{EventDelivery, EventDelivery, EventSubmit, EventPass}, types)
}

func TestRun_StatusExpectationMismatch(t *testing.T) {
	sc := &Scenario{
		Name:        "mismatch",
		Description: "offline submit expected synced",
		Steps: []Step{
			{Submit: &SubmitStep{Payload: validPayload()}, Expect: &ExpectClause{Status: "synced"}},
		},
		Assertions: []Assertion{
			{Type: AssertStatusCount, Status: "pending", Count: intp(1)},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected status synced, got pending")
}

func TestRun_ExpectedRejection(t *testing.T) {
	sc := &Scenario{
		Name:        "rejected",
		Description: "missing jenis_bencana",
		Online:      true,
		Steps: []Step{
			{
				Submit: &SubmitStep{Payload: map[string]any{"kecamatan": "Tempunak", "desa": "Kupan"}},
				Expect: &ExpectClause{Rejected: true},
			},
		},
		Assertions: []Assertion{
			{Type: AssertDeliveryCount, Count: intp(1)},
			{Type: AssertOrder, IDs: []string{}},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.IDs)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, EventRejected, last.Type)
}

func TestRun_UnexpectedRejection(t *testing.T) {
	sc := &Scenario{
		Name:        "unexpected",
		Description: "negative count",
		Steps: []Step{
			{Submit: &SubmitStep{Payload: map[string]any{
				"kecamatan": "A", "desa": "B", "jenis_bencana": "Banjir", "kk": -1,
			}}},
		},
		Assertions: []Assertion{
			{Type: AssertDeliveryCount, Count: intp(1)},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "submit rejected")
}

func TestRun_ExpectedRejectionButAccepted(t *testing.T) {
	sc := &Scenario{
		Name:        "accepted",
		Description: "valid payload expected to fail",
		Steps: []Step{
			{Submit: &SubmitStep{Payload: validPayload()}, Expect: &ExpectClause{Rejected: true}},
		},
		Assertions: []Assertion{
			{Type: AssertDeliveryCount, Count: intp(2)},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected rejection")
}

func TestRun_ManualSyncWhileOfflineRecordsNoPass(t *testing.T) {
	sc := &Scenario{
		Name:        "offline_sync",
		Description: "manual sync while offline is dropped",
		Steps: []Step{
			{Submit: &SubmitStep{Payload: validPayload()}},
			{Sync: "manual"},
		},
		Assertions: []Assertion{
			{Type: AssertStatusCount, Status: "pending", Count: intp(1)},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	for _, ev := range result.Trace {
		assert.NotEqual(t, EventPass, ev.Type)
	}
}

func TestRun_PinnedTimeOrdersLast(t *testing.T) {
	sc := &Scenario{
		Name:        "pinned",
		Description: "an earlier report is placed last",
		Online:      true,
		Steps: []Step{
			{Submit: &SubmitStep{Payload: validPayload()}},
			{Submit: &SubmitStep{Payload: validPayload(), At: "2024-12-31T23:59:59Z"}},
			{Submit: &SubmitStep{Payload: validPayload()}},
		},
		Assertions: []Assertion{
			{Type: AssertOrder, IDs: []string{"r-0001", "r-0003", "r-0002"}},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_AssertionFailuresReported(t *testing.T) {
	sc := &Scenario{
		Name:        "failing",
		Description: "every assertion is wrong",
		Steps: []Step{
			{Submit: &SubmitStep{Payload: validPayload()}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalStatus, ID: "r-0001", Status: "synced"},
			{Type: AssertFinalStatus, ID: "r-9999", Status: "synced"},
			{Type: AssertStatusCount, Status: "synced", Count: intp(1)},
			{Type: AssertOrder, IDs: []string{"r-0002"}},
			{Type: AssertLastDelivery, IDs: []string{}},
			{Type: AssertDeliveryCount, Count: intp(7)},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "status pending")
	assert.Contains(t, result.Errors[1], "report not found")
	assert.Contains(t, result.Errors[2], "1 synced report(s)")
	assert.Contains(t, result.Errors[3], "[r-0001]")
	assert.Contains(t, result.Errors[4], "last_delivery")
	assert.Contains(t, result.Errors[5], "7 deliveries")
}
