package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/export"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	StoreOptions
	FilterOptions
	Output  string
	Summary bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the recap as CSV",
		Long: `Export reports as a recap table in CSV, newest first.

With --summary, print damage and casualty totals instead of the table.

Examples:
  lapor export -o rekap.csv
  lapor export --kecamatan Sepauk
  lapor export --summary --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	opts.FilterOptions.addFlags(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write CSV to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "print totals instead of the table")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := opts.StoreOptions.open()
	if err != nil {
		return err
	}
	defer st.Close()

	reports, err := loadReports(cmd, st, opts.FilterOptions.filter(), true)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitFailure, "export failed", err)
	}
	formatter.VerboseLog("Exporting %d report(s)", len(reports))

	if opts.Summary {
		sum, err := export.Summarize(reports)
		if err != nil {
			return WrapExitError(ExitFailure, "summary failed", err)
		}
		if opts.Format == "json" {
			return formatter.Success(sum)
		}
		printSummaryText(cmd.OutOrStdout(), sum)
		return nil
	}

	w := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer f.Close()
		w = f
	}
	if err := export.WriteCSV(w, reports); err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}
	if opts.Output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d report(s) to %s\n", len(reports), opts.Output)
	}
	return nil
}

func printSummaryText(w io.Writer, s export.Summary) {
	fmt.Fprintf(w, "Reports:   %d (%d pending, %d synced)\n", s.Total, s.Pending, s.Synced)
	fmt.Fprintf(w, "Rumah:     RB %d, RS %d, RR %d\n", s.RB, s.RS, s.RR)
	fmt.Fprintf(w, "Jiwa:      %d\n", s.Jiwa)
	fmt.Fprintf(w, "Pengungsi: %d\n", s.Pengungsi)
	for _, j := range s.ByJenis {
		fmt.Fprintf(w, "  %-16s %d\n", j.Jenis, j.Total)
	}
}
