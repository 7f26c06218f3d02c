package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"
)

// DefaultProbeInterval is how often a Prober dials when no interval is given.
const DefaultProbeInterval = 5 * time.Second

// Dialer opens a connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober decides connectivity by dialing a TCP address on an interval.
// A successful dial means online.
type Prober struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dialer   Dialer

	online atomic.Bool
	ls     listeners
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithInterval sets the probe interval.
func WithInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) ProberOption {
	return func(p *Prober) { p.dialer = d }
}

// NewProber creates a prober for addr ("host:port"). It starts offline until
// the first probe.
func NewProber(addr string, opts ...ProberOption) *Prober {
	p := &Prober{
		addr:     addr,
		interval: DefaultProbeInterval,
		dialer:   &net.Dialer{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.timeout = p.interval / 2
	return p
}

// Online implements Monitor.
func (p *Prober) Online() bool {
	return p.online.Load()
}

// OnRestored implements Notifier.
func (p *Prober) OnRestored(fn func()) func() {
	return p.ls.add(fn)
}

// Probe dials once and updates the state. Returns the new state.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	online := false
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err == nil {
		online = true
		conn.Close()
	}

	prev := p.online.Swap(online)
	if prev != online {
		slog.Info("connectivity changed", "online", online, "addr", p.addr)
	}
	if online && !prev {
		p.ls.fire()
	}
	return online
}

// Run probes immediately and then on every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
