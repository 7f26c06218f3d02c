package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/report"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	StoreOptions
	SyncOptions
	CreatedBy string
}

// SubmitOutput is the result of a submission.
type SubmitOutput struct {
	ID         string        `json:"id"`
	Status     report.Status `json:"status"`
	ReportedAt time.Time     `json:"reported_at"`
	Sync       *SyncOutput   `json:"sync,omitempty"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit [payload-file]",
		Short: "Submit a report",
		Long: `Submit a disaster report.

The payload is a JSON or YAML object read from payload-file, or from stdin
when the file is omitted or "-". The report is saved as synced when the device
is online and as pending otherwise. Submitting also starts a sync pass for
older pending reports; the command waits for it before exiting.

Examples:
  lapor submit report.json
  lapor submit --offline --created-by desa-001 report.yaml
  echo '{"kecamatan":"Tempunak","desa":"Kupan","jenis_bencana":"Banjir"}' | lapor submit`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runSubmit(opts, path, cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	opts.SyncOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.CreatedBy, "created-by", "", "attribution tag stored with the report")

	return cmd
}

func runSubmit(opts *SubmitOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	payload, err := readPayload(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidPayload, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid payload", err)
	}

	p, err := openPipeline(ctx, &opts.StoreOptions, &opts.SyncOptions)
	if err != nil {
		return err
	}
	defer p.Close()

	sub, err := p.gateway.Submit(ctx, report.Draft{Payload: payload, CreatedBy: opts.CreatedBy})
	if err != nil {
		var ve *report.ValidationError
		if errors.As(err, &ve) {
			_ = formatter.Error(ErrCodeInvalidPayload, ve.Error(), payloadErrorsOf(ve))
			return WrapExitError(ExitFailure, "invalid payload", err)
		}
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitFailure, "submit failed", err)
	}

	out := SubmitOutput{
		ID:         sub.Report.ID,
		Status:     sub.Report.Status,
		ReportedAt: sub.Report.ReportedAt,
	}
	if sub.Pass != nil {
		so, err := awaitPass(cmd, sub.Pass)
		if err != nil {
			return err
		}
		out.Sync = &so
	}

	if opts.Format == "json" {
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Submitted %s (%s)\n", out.ID, out.Status)
	if out.Sync != nil {
		printSyncText(w, *out.Sync)
	}
	return nil
}
