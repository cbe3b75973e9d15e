package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
)

// Registry holds the detection-run metrics for the engine
type Registry struct {
	meter metric.Meter

	RunDuration        metric.Float64Histogram
	RunCounter         metric.Int64Counter
	AggregatesUpserted metric.Int64Counter
	SignalsCreated     metric.Int64Counter
	SignalsWithheld    metric.Int64Counter
	DuplicateSkips     metric.Int64Counter
	RecordsRejected    metric.Int64Counter
}

// NewRegistry creates a metrics registry bound to the named meter
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error
	if r.RunDuration, err = meter.Float64Histogram(
		"detection.run.duration",
		metric.WithDescription("Duration of a detection run in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if r.RunCounter, err = meter.Int64Counter(
		"detection.runs",
		metric.WithDescription("Completed detection runs"),
	); err != nil {
		return nil, err
	}
	if r.AggregatesUpserted, err = meter.Int64Counter(
		"detection.aggregates.upserted",
		metric.WithDescription("Aggregate rows written"),
	); err != nil {
		return nil, err
	}
	if r.SignalsCreated, err = meter.Int64Counter(
		"detection.signals.created",
		metric.WithDescription("Signals created"),
	); err != nil {
		return nil, err
	}
	if r.SignalsWithheld, err = meter.Int64Counter(
		"detection.signals.withheld",
		metric.WithDescription("Signals withheld by suppression"),
	); err != nil {
		return nil, err
	}
	if r.DuplicateSkips, err = meter.Int64Counter(
		"detection.signals.duplicate_skips",
		metric.WithDescription("Candidates skipped due to an existing fingerprint"),
	); err != nil {
		return nil, err
	}
	if r.RecordsRejected, err = meter.Int64Counter(
		"detection.records.rejected",
		metric.WithDescription("Malformed raw records excluded from aggregation"),
	); err != nil {
		return nil, err
	}

	return r, nil
}

// RecordRun records the outcome of one detection run. Safe on a nil registry.
func (r *Registry) RecordRun(ctx context.Context, summary *drift.RunSummary, duration time.Duration) {
	if r == nil || summary == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("tenant_id", summary.TenantID),
		attribute.String("module", string(summary.Module)),
	)

	r.RunDuration.Record(ctx, duration.Seconds(), attrs)
	r.RunCounter.Add(ctx, 1, attrs)
	r.AggregatesUpserted.Add(ctx, int64(summary.AggregatesCreated), attrs)
	r.SignalsCreated.Add(ctx, int64(summary.SignalsCreated), attrs)
	r.SignalsWithheld.Add(ctx, int64(summary.SignalsWithheld), attrs)
	r.DuplicateSkips.Add(ctx, int64(summary.SignalsSkippedDuplicate), attrs)
	r.RecordsRejected.Add(ctx, int64(summary.RecordsRejected), attrs)
}
