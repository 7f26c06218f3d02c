package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	payloadTempunak = `{"kecamatan":"Tempunak","desa":"Sungai Ringin","jenis_bencana":"Banjir","kk":12,"jiwa":40,"rumah_rb":1,"rumah_rs":4}`
	payloadSepauk   = `{"kecamatan":"Sepauk","desa":"Nanga Sepauk","jenis_bencana":"Tanah Longsor","jiwa":8,"rumah_rr":2}`
	payloadNoDesa   = `{"kecamatan":"Sepauk","jenis_bencana":"Banjir"}`
)

// executeCommand runs the root command with args and stdin, returning what
// it wrote to stdout and stderr.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(EnvProbe, "")

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lapor.db")
}

// decodeData unmarshals the data of a successful JSON response into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status, "output: %s", out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// submit stores a payload through the submit command and returns its ID.
func submit(t *testing.T, db, payload string, extra ...string) SubmitOutput {
	t.Helper()
	args := append([]string{"submit", "--db", db, "--sync-delay", "0", "--format", "json"}, extra...)
	out, _, err := executeCommand(t, payload, args...)
	require.NoError(t, err)

	var so SubmitOutput
	decodeData(t, out, &so)
	return so
}

// list returns the report list as JSON entries.
func list(t *testing.T, db string, extra ...string) []ListEntry {
	t.Helper()
	args := append([]string{"list", "--db", db, "--format", "json"}, extra...)
	out, _, err := executeCommand(t, "", args...)
	require.NoError(t, err)

	var entries []ListEntry
	decodeData(t, out, &entries)
	return entries
}

func entryIDs(entries []ListEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
