package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/connectivity"
	"github.com/roach88/lapor/internal/gateway"
	"github.com/roach88/lapor/internal/reconcile"
	"github.com/roach88/lapor/internal/store"
)

// Environment variables read for flag defaults.
const (
	EnvDatabase = "LAPOR_DB"
	EnvProbe    = "LAPOR_PROBE"
)

// DefaultDatabase is used when neither --db nor LAPOR_DB is set.
const DefaultDatabase = "lapor.db"

func getenvDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// StoreOptions holds the database flag shared by commands that open the store.
type StoreOptions struct {
	Database string
}

func (o *StoreOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", getenvDefault(EnvDatabase, DefaultDatabase),
		"path to SQLite database (env "+EnvDatabase+")")
}

func (o *StoreOptions) open() (*store.Store, error) {
	slog.Debug("opening database", "path", o.Database)
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// SyncOptions holds the connectivity and reconciliation flags.
type SyncOptions struct {
	Offline       bool
	Probe         string
	ProbeInterval time.Duration
	SyncDelay     time.Duration
}

func (o *SyncOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.Offline, "offline", false, "treat the device as offline (ignored with --probe)")
	cmd.Flags().StringVar(&o.Probe, "probe", getenvDefault(EnvProbe, ""),
		"host:port dialled to detect connectivity (env "+EnvProbe+")")
	cmd.Flags().DurationVar(&o.ProbeInterval, "probe-interval", connectivity.DefaultProbeInterval, "interval between connectivity probes")
	cmd.Flags().DurationVar(&o.SyncDelay, "sync-delay", reconcile.DefaultSettleDelay, "simulated settle delay of a sync pass")
}

// connectivitySource is both the state check and the restore event source.
type connectivitySource interface {
	connectivity.Monitor
	connectivity.Notifier
}

// source returns a Prober when --probe is set, probed once so Online is
// current, and a fixed Switch otherwise.
func (o *SyncOptions) source(ctx context.Context) (connectivitySource, *connectivity.Prober) {
	if o.Probe == "" {
		return connectivity.NewSwitch(!o.Offline), nil
	}
	p := connectivity.NewProber(o.Probe, connectivity.WithInterval(o.ProbeInterval))
	p.Probe(ctx)
	return p, p
}

// pipeline wires the store, reconciler and gateway for one command.
type pipeline struct {
	store   *store.Store
	conn    connectivitySource
	prober  *connectivity.Prober
	rec     *reconcile.Reconciler
	gateway *gateway.Gateway

	unlisten func()
	stop     context.CancelFunc
	done     chan error
}

// openPipeline opens the store and starts the reconciliation worker.
// Close must be called to stop the worker and release the store.
func openPipeline(ctx context.Context, so *StoreOptions, sy *SyncOptions) (*pipeline, error) {
	st, err := so.open()
	if err != nil {
		return nil, err
	}

	conn, prober := sy.source(ctx)
	rec, err := reconcile.New(st, conn, reconcile.WithSettler(reconcile.SimulatedSettler{Delay: sy.SyncDelay}))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}
	gw, err := gateway.New(st, conn, rec)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	p := &pipeline{
		store:    st,
		conn:     conn,
		prober:   prober,
		rec:      rec,
		gateway:  gw,
		unlisten: rec.Listen(conn),
		stop:     stop,
		done:     make(chan error, 1),
	}
	go func() {
		p.done <- rec.Run(runCtx)
	}()
	slog.Debug("pipeline ready", "db", so.Database, "online", conn.Online())
	return p, nil
}

// Close stops the worker, waiting for a running pass, then closes the store.
func (p *pipeline) Close() error {
	p.unlisten()
	p.stop()
	if err := <-p.done; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("reconciler stopped with error", "error", err)
	}
	if err := p.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// commandContext returns the command's context or a background context.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newFormatter builds the formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
