package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lapor/internal/report"
)

// runEvents decodes the NDJSON output of the run command.
func runEvents(t *testing.T, out string) []RunEvent {
	t.Helper()
	var events []RunEvent
	dec := json.NewDecoder(strings.NewReader(out))
	for {
		var ev RunEvent
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func eventsOfType(events []RunEvent, typ string) []RunEvent {
	var out []RunEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func drafts(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestRun_OfflineDraftsStayPending(t *testing.T) {
	db := tempDB(t)
	stdin := drafts(
		`{"payload":`+payloadTempunak+`,"created_by":"desa-001"}`,
		``,
		payloadSepauk,
		payloadNoDesa,
		`not json`,
	)

	out, _, err := executeCommand(t, stdin, "run", "--db", db, "--offline", "--exit-on-eof",
		"--sync-delay", "0", "--created-by", "posko", "--format", "json")
	require.NoError(t, err)

	events := runEvents(t, out)
	submitted := eventsOfType(events, "submitted")
	require.Len(t, submitted, 2)
	assert.Equal(t, 1, submitted[0].Line)
	assert.Equal(t, 3, submitted[1].Line)
	for _, ev := range submitted {
		assert.Equal(t, report.StatusPending, ev.Status)
	}

	rejected := eventsOfType(events, "rejected")
	require.Len(t, rejected, 2)
	assert.Equal(t, 4, rejected[0].Line)
	assert.Contains(t, rejected[0].Error, "desa")
	assert.Equal(t, 5, rejected[1].Line)
	assert.Contains(t, rejected[1].Error, "decode draft")

	deliveries := eventsOfType(events, "delivery")
	require.Len(t, deliveries, 3, "initial list plus one per accepted draft")
	assert.Empty(t, deliveries[0].Reports)
	last := deliveries[2].Reports
	require.Len(t, last, 2)
	assert.Equal(t, submitted[1].ID, last[0].ID, "newest first")
	assert.Equal(t, "posko", last[0].CreatedBy)
	assert.Equal(t, "desa-001", last[1].CreatedBy)

	assert.Len(t, list(t, db, "--status", "pending"), 2)
}

func TestRun_OnlineDraftsSynced(t *testing.T) {
	db := tempDB(t)
	submit(t, db, payloadTempunak, "--offline")

	out, _, err := executeCommand(t, drafts(payloadSepauk), "run", "--db", db, "--exit-on-eof",
		"--sync-delay", "0", "--format", "json")
	require.NoError(t, err)

	submitted := eventsOfType(runEvents(t, out), "submitted")
	require.Len(t, submitted, 1)
	assert.Equal(t, report.StatusSynced, submitted[0].Status)

	assert.Empty(t, list(t, db, "--status", "pending"), "the pass started by the draft synced the earlier report")
}

func TestRun_LiveListFiltered(t *testing.T) {
	db := tempDB(t)

	out, _, err := executeCommand(t, drafts(payloadTempunak, payloadSepauk), "run", "--db", db, "--offline",
		"--exit-on-eof", "--kecamatan", "Sepauk", "--format", "json")
	require.NoError(t, err)

	deliveries := eventsOfType(runEvents(t, out), "delivery")
	require.NotEmpty(t, deliveries)
	last := deliveries[len(deliveries)-1].Reports
	require.Len(t, last, 1)
	assert.Equal(t, "Sepauk", last[0].Kecamatan)
}

func TestRun_TextOutput(t *testing.T) {
	out, _, err := executeCommand(t, drafts(payloadTempunak), "run", "--db", tempDB(t), "--offline", "--exit-on-eof")
	require.NoError(t, err)

	assert.Contains(t, out, "No reports.")
	assert.Contains(t, out, "(pending)")
	assert.Contains(t, out, "1 report(s), 1 pending")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	db := tempDB(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetIn(pr)
	cmd.SetArgs([]string{"run", "--db", db, "--offline"})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not respect context timeout")
	}
	assert.Contains(t, buf.String(), "No reports.")
}

func TestRun_UnopenableDatabase(t *testing.T) {
	_, _, err := executeCommand(t, "", "run", "--db", "/nonexistent/dir/lapor.db", "--exit-on-eof")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseDraftLine(t *testing.T) {
	d, err := parseDraftLine([]byte(`{"payload":{"kecamatan":"Sepauk"},"created_by":"desa-002"}`), "posko")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kecamatan":"Sepauk"}`, string(d.Payload))
	assert.Equal(t, "desa-002", d.CreatedBy)

	d, err = parseDraftLine([]byte(`{"payload":{"kecamatan":"Sepauk"}}`), "posko")
	require.NoError(t, err)
	assert.Equal(t, "posko", d.CreatedBy)

	line := []byte(`{"kecamatan":"Tempunak"}`)
	d, err = parseDraftLine(line, "posko")
	require.NoError(t, err)
	assert.Equal(t, `{"kecamatan":"Tempunak"}`, string(d.Payload))
	line[2] = 'X'
	assert.Equal(t, `{"kecamatan":"Tempunak"}`, string(d.Payload), "payload does not alias the scanner buffer")

	_, err = parseDraftLine([]byte(`[1,2]`), "")
	require.Error(t, err)
}

func TestRunHelpText(t *testing.T) {
	out, _, err := executeCommand(t, "", "run", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Run the report pipeline")
	assert.Contains(t, out, "--probe")
	assert.Contains(t, out, "--exit-on-eof")
}
