package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/livequery"
	"github.com/roach88/lapor/internal/report"
)

// maxDraftLine bounds one NDJSON line, photos included.
const maxDraftLine = 8 << 20

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	StoreOptions
	SyncOptions
	FilterOptions
	Author    string
	ExitOnEOF bool
}

// RunEvent is one line of the run command's JSON output.
type RunEvent struct {
	Type    string        `json:"type"` // "submitted" | "rejected" | "delivery" | "fault"
	Line    int           `json:"line,omitempty"`
	ID      string        `json:"id,omitempty"`
	Status  report.Status `json:"status,omitempty"`
	Reports []ListEntry   `json:"reports,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the report pipeline, reading drafts from stdin",
		Long: `Run the report pipeline as a long-lived process.

Each stdin line is a JSON draft, either {"payload":{...},"created_by":"..."}
or a bare payload object. Every accepted report is saved immediately; the
report list is printed again after every change. With --probe, connectivity
is checked periodically and pending reports sync when it returns.

Examples:
  lapor run --probe example.org:443 < drafts.ndjson
  lapor run --offline --kecamatan Tempunak --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	opts.SyncOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Kecamatan, "kecamatan", "", "only list reports from this kecamatan")
	cmd.Flags().StringVar(&opts.Jenis, "jenis", "", "only list reports of this jenis_bencana")
	cmd.Flags().StringVar(&opts.Author, "created-by", "", "attribution tag for drafts that carry none")
	cmd.Flags().BoolVar(&opts.ExitOnEOF, "exit-on-eof", false, "stop once stdin is closed and syncing is idle")

	return cmd
}

// eventWriter serializes output from the reader and the store's notifications.
type eventWriter struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

func (e *eventWriter) emit(ev RunEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.format == "json" {
		_ = json.NewEncoder(e.w).Encode(ev)
		return
	}
	switch ev.Type {
	case "submitted":
		fmt.Fprintf(e.w, "Submitted %s (%s)\n", ev.ID, ev.Status)
	case "rejected":
		fmt.Fprintf(e.w, "✗ line %d: %s\n", ev.Line, ev.Error)
	case "delivery":
		fmt.Fprintln(e.w)
		printListText(e.w, ev.Reports)
	case "fault":
		fmt.Fprintf(e.w, "✗ live list stopped: %s\n", ev.Error)
	}
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	p, err := openPipeline(ctx, &opts.StoreOptions, &opts.SyncOptions)
	if err != nil {
		return err
	}
	defer p.Close()

	if p.prober != nil {
		go func() {
			if err := p.prober.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("connectivity probe stopped", "error", err)
			}
		}()
	}

	hub := livequery.NewHub(p.store)
	defer hub.Close()

	out := &eventWriter{w: cmd.OutOrStdout(), format: opts.Format}
	var q livequery.Query = livequery.OrderedByTime{Descending: true}
	if f := opts.FilterOptions.filter(); !f.IsZero() {
		q = livequery.Filtered{Base: q, Filter: f}
	}
	_, err = hub.Subscribe(ctx, q,
		func(rs []report.Report) {
			entries := make([]ListEntry, 0, len(rs))
			for _, r := range rs {
				entries = append(entries, newListEntry(r))
			}
			out.emit(RunEvent{Type: "delivery", Reports: entries})
		},
		func(err error) {
			slog.Error("live query failed", "error", err)
			out.emit(RunEvent{Type: "fault", Error: err.Error()})
		},
	)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to subscribe to report list", err)
	}

	slog.Info("pipeline started", "db", opts.Database, "online", p.conn.Online(), "probe", opts.Probe)

	readDone := make(chan error, 1)
	go func() {
		readDone <- readDrafts(ctx, p, opts.Author, cmd.InOrStdin(), out)
	}()

	select {
	case <-ctx.Done():
	case err := <-readDone:
		if err != nil {
			slog.Error("reading drafts failed", "error", err)
		}
		if opts.ExitOnEOF {
			drain(ctx, p)
		} else {
			<-ctx.Done()
		}
	}

	slog.Info("pipeline stopped")
	return nil
}

// readDrafts submits each stdin line until EOF or ctx is done.
func readDrafts(ctx context.Context, p *pipeline, author string, in io.Reader, out *eventWriter) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDraftLine)

	line := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		d, err := parseDraftLine(raw, author)
		if err != nil {
			out.emit(RunEvent{Type: "rejected", Line: line, Error: err.Error()})
			continue
		}
		sub, err := p.gateway.Submit(ctx, d)
		if err != nil {
			out.emit(RunEvent{Type: "rejected", Line: line, Error: err.Error()})
			continue
		}
		out.emit(RunEvent{Type: "submitted", Line: line, ID: sub.Report.ID, Status: sub.Report.Status})
	}
	return scanner.Err()
}

// parseDraftLine decodes a draft line. A line without a "payload" member is
// taken as the payload itself, attributed to author.
func parseDraftLine(line []byte, author string) (report.Draft, error) {
	var d report.Draft
	if err := json.Unmarshal(line, &d); err != nil {
		return report.Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	if len(d.Payload) == 0 {
		return report.Draft{Payload: bytes.Clone(line), CreatedBy: author}, nil
	}
	if d.CreatedBy == "" {
		d.CreatedBy = author
	}
	return d, nil
}

// drain waits until no pass is queued or running.
func drain(ctx context.Context, p *pipeline) {
	for pass := p.rec.InFlight(); pass != nil; pass = p.rec.InFlight() {
		if _, err := pass.Wait(ctx); err != nil {
			return
		}
	}
}
