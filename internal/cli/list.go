package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/export"
	"github.com/roach88/lapor/internal/report"
	"github.com/roach88/lapor/internal/store"
)

// FilterOptions holds the dashboard filter flags.
type FilterOptions struct {
	Kecamatan string
	Jenis     string
	CreatedBy string
}

func (o *FilterOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Kecamatan, "kecamatan", "", `only reports from this kecamatan ("`+report.All+`" for all)`)
	cmd.Flags().StringVar(&o.Jenis, "jenis", "", "only reports of this jenis_bencana")
	cmd.Flags().StringVar(&o.CreatedBy, "created-by", "", "only reports with this attribution tag")
}

func (o *FilterOptions) filter() report.Filter {
	return report.Filter{
		Kecamatan:    o.Kecamatan,
		JenisBencana: o.Jenis,
		CreatedBy:    o.CreatedBy,
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	StoreOptions
	FilterOptions
	Status    string
	Ascending bool
}

// ListEntry is one row of the report list.
type ListEntry struct {
	report.Report
	Kecamatan    string `json:"kecamatan"`
	Desa         string `json:"desa"`
	JenisBencana string `json:"jenis_bencana"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		Long: `List stored reports ordered by report time, newest first.

Examples:
  lapor list
  lapor list --status pending
  lapor list --kecamatan Tempunak --jenis Banjir --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	opts.FilterOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Status, "status", "", "only reports with this status (pending|synced)")
	cmd.Flags().BoolVar(&opts.Ascending, "asc", false, "oldest first")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var status report.Status
	if opts.Status != "" {
		s, err := report.ParseStatus(opts.Status)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --status", err)
		}
		status = s
	}

	st, err := opts.StoreOptions.open()
	if err != nil {
		return err
	}
	defer st.Close()

	reports, err := loadReports(cmd, st, opts.FilterOptions.filter(), !opts.Ascending)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitFailure, "list failed", err)
	}

	entries := make([]ListEntry, 0, len(reports))
	for _, r := range reports {
		if status != "" && r.Status != status {
			continue
		}
		entries = append(entries, newListEntry(r))
	}

	if opts.Format == "json" {
		return formatter.Success(entries)
	}
	printListText(cmd.OutOrStdout(), entries)
	return nil
}

// loadReports reads the ordered report set and applies the filter.
func loadReports(cmd *cobra.Command, st *store.Store, f report.Filter, descending bool) ([]report.Report, error) {
	reports, err := st.QueryOrderedByTime(commandContext(cmd), descending)
	if err != nil {
		return nil, err
	}
	return f.Apply(reports), nil
}

func newListEntry(r report.Report) ListEntry {
	e := ListEntry{Report: r}
	if facets, err := report.ExtractFacets(r.Payload); err == nil {
		e.Kecamatan = facets.Kecamatan
		e.Desa = facets.Desa
		e.JenisBencana = facets.JenisBencana
	}
	return e
}

func printListText(w io.Writer, entries []ListEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No reports.")
		return
	}
	pending := 0
	for _, e := range entries {
		if e.Status == report.StatusPending {
			pending++
		}
		fmt.Fprintf(w, "%-36s  %-7s  %-24s  %-16s  %-16s  %s\n",
			e.ID, e.Status, e.ReportedAt.UTC().Format(export.TimeLayout), e.Kecamatan, e.Desa, e.JenisBencana)
	}
	fmt.Fprintf(w, "%d report(s), %d pending\n", len(entries), pending)
}
