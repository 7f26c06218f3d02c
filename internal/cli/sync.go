package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/reconcile"
)

// syncCommandOptions holds flags for the sync command.
type syncCommandOptions struct {
	*RootOptions
	StoreOptions
	SyncOptions
}

// SyncOutput is the CLI form of a reconciliation pass result.
type SyncOutput struct {
	Reason     string          `json:"reason"`
	Skipped    bool            `json:"skipped,omitempty"`
	Snapshot   int             `json:"snapshot"`
	Synced     []string        `json:"synced"`
	Failures   []FailureOutput `json:"failures,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// FailureOutput is one record the pass could not mark synced.
type FailureOutput struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func newSyncOutput(res reconcile.PassResult) SyncOutput {
	out := SyncOutput{
		Reason:     string(res.Reason),
		Skipped:    res.Skipped,
		Snapshot:   res.Snapshot,
		Synced:     res.Synced,
		DurationMS: res.Duration.Milliseconds(),
	}
	if out.Synced == nil {
		out.Synced = []string{}
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, FailureOutput{ID: f.ID, Error: f.Err.Error()})
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// failed reports whether the pass left records it should have synced.
func (o SyncOutput) failed() bool {
	return o.Error != "" || len(o.Failures) > 0
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &syncCommandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass over pending reports",
		Long: `Run one sync pass: every report pending when the pass starts is
reconciled and marked synced. Nothing happens while offline.

Exit codes:
  0 - Pass completed, or skipped because the device is offline
  1 - One or more reports could not be synced
  2 - Command error (database cannot be opened, etc.)

Examples:
  lapor sync
  lapor sync --probe example.org:443 --sync-delay 0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	opts.SyncOptions.addFlags(cmd)

	return cmd
}

func runSync(opts *syncCommandOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	p, err := openPipeline(commandContext(cmd), &opts.StoreOptions, &opts.SyncOptions)
	if err != nil {
		return err
	}
	defer p.Close()

	pass, started := p.rec.Trigger(reconcile.ReasonManual)
	if !started {
		pass = p.rec.InFlight()
	}
	if pass == nil {
		if opts.Format == "json" {
			return formatter.Success(SyncOutput{Reason: string(reconcile.ReasonManual), Skipped: true, Synced: []string{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Offline: sync skipped")
		return nil
	}

	out, err := awaitPass(cmd, pass)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		if out.failed() {
			_ = formatter.Error(ErrCodeSyncFailed, "sync pass failed", out)
		} else if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printSyncText(cmd.OutOrStdout(), out)
	}

	if out.failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("sync pass failed: %d record(s) not synced", out.Snapshot-len(out.Synced)))
	}
	return nil
}

// awaitPass waits for p and converts its result.
func awaitPass(cmd *cobra.Command, p *reconcile.Pass) (SyncOutput, error) {
	res, err := p.Wait(commandContext(cmd))
	if err != nil {
		return SyncOutput{}, WrapExitError(ExitFailure, "waiting for sync pass", err)
	}
	return newSyncOutput(res), nil
}

func printSyncText(w io.Writer, out SyncOutput) {
	switch {
	case out.Skipped:
		fmt.Fprintln(w, "Sync skipped: offline")
	case out.Error != "":
		fmt.Fprintf(w, "✗ Sync failed: %s\n", out.Error)
	case out.Snapshot == 0:
		fmt.Fprintln(w, "Nothing to sync")
	default:
		fmt.Fprintf(w, "Synced %d of %d pending report(s)\n", len(out.Synced), out.Snapshot)
		for _, f := range out.Failures {
			fmt.Fprintf(w, "  ✗ %s: %s\n", f.ID, f.Error)
		}
	}
}
