package reconcile

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/roach88/lapor/internal/reconcile"

type metrics struct {
	passes    metric.Int64Counter
	synced    metric.Int64Counter
	failed    metric.Int64Counter
	coalesced metric.Int64Counter
	offline   metric.Int64Counter
	duration  metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)
	m := &metrics{}

	var err error
	m.passes, err = meter.Int64Counter("lapor.reconcile.passes",
		metric.WithDescription("Reconciliation passes run"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	m.synced, err = meter.Int64Counter("lapor.reconcile.records.synced",
		metric.WithDescription("Reports marked synced"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.failed, err = meter.Int64Counter("lapor.reconcile.records.failed",
		metric.WithDescription("Reports a pass could not mark synced"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.coalesced, err = meter.Int64Counter("lapor.reconcile.triggers.coalesced",
		metric.WithDescription("Triggers dropped because a pass was in flight"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return nil, err
	}

	m.offline, err = meter.Int64Counter("lapor.reconcile.triggers.offline",
		metric.WithDescription("Triggers ignored while offline"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram("lapor.reconcile.pass.duration",
		metric.WithDescription("Pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func reasonAttr(r Reason) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("reason", string(r)))
}

func (m *metrics) recordPass(ctx context.Context, res PassResult) {
	attrs := reasonAttr(res.Reason)
	m.passes.Add(ctx, 1, attrs)
	if n := len(res.Synced); n > 0 {
		m.synced.Add(ctx, int64(n))
	}
	if n := len(res.Failures); n > 0 {
		m.failed.Add(ctx, int64(n))
	}
	m.duration.Record(ctx, res.Duration.Seconds(), attrs)
}

func (m *metrics) recordCoalesced(ctx context.Context, r Reason) {
	m.coalesced.Add(ctx, 1, reasonAttr(r))
}

func (m *metrics) recordOffline(ctx context.Context, r Reason) {
	m.offline.Add(ctx, 1, reasonAttr(r))
}
