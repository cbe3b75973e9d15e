package detection

import (
	"fmt"
	"sort"
	"time"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// bucket accumulates one (entity, period) group during the build phase
type bucket struct {
	entity  string
	period  values.Period
	total   int // all records routed to the bucket
	usable  int // records with the module's required field populated
	matched int // rate numerator
	meanSum float64
	amount  values.Money
}

// buildAggregates groups raw records into per-entity day buckets over the
// lookback range and computes the module statistic for each. Malformed
// records are excluded and counted; buckets below the per-period sample
// minimum are produced with the low-sample flag instead of being dropped.
func buildAggregates(cfg drift.ModuleConfig, tenantID string, records []drift.RawRecord, lookback values.Window, now time.Time) aggregationResult {
	var result aggregationResult
	buckets := make(map[string]*bucket)

	for _, rec := range records {
		if rec.TenantID != tenantID {
			// Cross-tenant records are an ingestion contract violation, not
			// something to aggregate quietly.
			result.rejected++
			continue
		}
		if rec.Entity == "" || rec.OccurredAt.IsZero() {
			result.rejected++
			continue
		}
		if !lookback.Contains(rec.OccurredAt) {
			continue
		}

		period := values.PeriodOf(rec.OccurredAt)
		key := rec.Entity + "|" + period.Key()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{entity: rec.Entity, period: period, amount: values.Zero(values.USD)}
			buckets[key] = b
		}
		b.total++

		switch cfg.Metric {
		case drift.MetricRate:
			if rec.Outcome == "" {
				continue
			}
			b.usable++
			if rec.Outcome == drift.OutcomeDenied {
				b.matched++
			}
		case drift.MetricMean:
			if rec.DaysToPayment == nil {
				continue
			}
			if *rec.DaysToPayment < 0 {
				result.rejected++
				b.total--
				continue
			}
			b.usable++
			b.meanSum += *rec.DaysToPayment
		case drift.MetricSum:
			if rec.Amount == nil {
				continue
			}
			if rec.Amount.IsNegative() {
				result.rejected++
				b.total--
				continue
			}
			b.usable++
			// The daily statistic is denied dollars; paid claims contribute
			// to the sample but not the sum.
			if rec.Outcome != drift.OutcomeDenied {
				continue
			}
			sum, err := b.amount.Add(*rec.Amount)
			if err != nil {
				result.rejected++
				b.total--
				b.usable--
				continue
			}
			b.amount = sum
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b := buckets[k]
		agg := &drift.Aggregate{
			TenantID:    tenantID,
			Module:      cfg.Module,
			Entity:      b.entity,
			Period:      b.period,
			SampleCount: b.usable,
			Sum:         values.Zero(values.USD),
			CreatedAt:   now,
		}
		if b.total > 0 {
			agg.Completeness = float64(b.usable) / float64(b.total)
		}

		switch cfg.Metric {
		case drift.MetricRate:
			agg.MatchedCount = b.matched
			if b.usable > 0 {
				agg.Rate = float64(b.matched) / float64(b.usable)
			}
		case drift.MetricMean:
			if b.usable > 0 {
				agg.Mean = b.meanSum / float64(b.usable)
			}
		case drift.MetricSum:
			agg.Sum = b.amount
			agg.Mean = b.amount.Float64()
		}

		if b.usable < cfg.MinBucketSamples {
			agg.LowSample = true
			result.flagged++
		}
		if agg.Completeness < cfg.MinCompleteness && b.total >= cfg.MinBucketSamples {
			result.warnings = append(result.warnings, fmt.Sprintf(
				"low completeness for entity %q period %s: %.0f%%",
				b.entity, b.period.Key(), agg.Completeness*100))
		}

		result.aggregates = append(result.aggregates, agg)
	}

	return result
}
