package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/report"
)

// FacetsOutput lists the dashboard filter choices and status counts.
type FacetsOutput struct {
	Total        int      `json:"total"`
	Pending      int      `json:"pending"`
	Synced       int      `json:"synced"`
	Kecamatan    []string `json:"kecamatan"`
	JenisBencana []string `json:"jenis_bencana"`
}

// NewFacetsCommand creates the facets command.
func NewFacetsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{}

	cmd := &cobra.Command{
		Use:           "facets",
		Short:         "Show filter choices and status counts",
		Long:          `Show the distinct kecamatan and jenis_bencana values in the store, with report counts by status.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFacets(rootOpts, opts, cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runFacets(rootOpts *RootOptions, opts *StoreOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	ctx := commandContext(cmd)

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	facets, err := st.DistinctFacets(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitFailure, "facets failed", err)
	}
	counts, err := st.CountByStatus(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitFailure, "facets failed", err)
	}

	out := FacetsOutput{
		Pending:      counts[report.StatusPending],
		Synced:       counts[report.StatusSynced],
		Kecamatan:    facets.Kecamatan,
		JenisBencana: facets.JenisBencana,
	}
	out.Total = out.Pending + out.Synced

	if rootOpts.Format == "json" {
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Reports:       %d (%d pending, %d synced)\n", out.Total, out.Pending, out.Synced)
	fmt.Fprintf(w, "Kecamatan:     %s\n", joinChoices(out.Kecamatan))
	fmt.Fprintf(w, "Jenis bencana: %s\n", joinChoices(out.JenisBencana))
	return nil
}

// joinChoices renders a dropdown's options, "Semua" first.
func joinChoices(values []string) string {
	return strings.Join(append([]string{report.All}, values...), ", ")
}
