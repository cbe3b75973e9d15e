package detection

import (
	"math"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// compareWindows compares the trailing baseline window against the current
// window for one entity. Returns nil when the policy gates (minimum combined
// samples, usable buckets on both sides) are not met; that is a policy
// outcome, not an error.
func compareWindows(cfg drift.ModuleConfig, tenantID, entity string, baseline, current []*drift.Aggregate, baselineWin, currentWin values.Window) *drift.DriftMeasurement {
	baseline = usableBuckets(baseline)
	current = usableBuckets(current)
	if len(baseline) == 0 || len(current) == 0 {
		return nil
	}

	baseSamples := totalSamples(baseline)
	curSamples := totalSamples(current)
	if baseSamples+curSamples < cfg.MinCombinedSamples {
		return nil
	}

	m := &drift.DriftMeasurement{
		TenantID:        tenantID,
		Entity:          entity,
		Module:          cfg.Module,
		Metric:          cfg.Metric,
		BaselineSamples: baseSamples,
		CurrentSamples:  curSamples,
		Completeness:    weightedCompleteness(baseline, current),
		BaselineWindow:  baselineWin,
		CurrentWindow:   currentWin,
	}

	switch cfg.Metric {
	case drift.MetricRate:
		compareRates(cfg, m, baseline, current)
	case drift.MetricMean:
		compareContinuous(cfg, m, weightedMeans(baseline), weightedMeans(current))
	case drift.MetricSum:
		compareContinuous(cfg, m, dailySums(baseline), dailySums(current))
	default:
		return nil
	}

	return m
}

// compareRates runs a pooled two-proportion z test. Values and deltas are
// expressed in percentage points. Significance requires both a p-value under
// the configured level and a relative change above the module minimum: a
// large swing on tiny samples or a significant-but-negligible change must
// not qualify.
func compareRates(cfg drift.ModuleConfig, m *drift.DriftMeasurement, baseline, current []*drift.Aggregate) {
	var baseMatched, baseTotal, curMatched, curTotal int
	for _, a := range baseline {
		baseMatched += a.MatchedCount
		baseTotal += a.SampleCount
	}
	for _, a := range current {
		curMatched += a.MatchedCount
		curTotal += a.SampleCount
	}
	if baseTotal == 0 || curTotal == 0 {
		return
	}

	p1 := float64(baseMatched) / float64(baseTotal)
	p2 := float64(curMatched) / float64(curTotal)

	m.BaselineValue = p1 * 100
	m.CurrentValue = p2 * 100
	m.AbsoluteDelta = (p2 - p1) * 100
	if p1 > 0 {
		m.RelativeDelta = (p2 - p1) / p1
	}

	pooled := float64(baseMatched+curMatched) / float64(baseTotal+curTotal)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(baseTotal) + 1/float64(curTotal)))
	if se > 0 {
		m.ZScore = (p2 - p1) / se
		m.PValue = twoSidedP(m.ZScore)
	} else {
		m.PValue = 1
	}

	m.Significant = m.PValue < cfg.SignificanceLevel &&
		exceedsRelativeGate(cfg, p1, p2, m.RelativeDelta)
}

// compareContinuous compares per-bucket values (weighted means for duration
// metrics, daily totals for dollar metrics) using the baseline standard
// deviation when available.
func compareContinuous(cfg drift.ModuleConfig, m *drift.DriftMeasurement, baseline, current []weightedValue) {
	baseMean := meanOf(baseline)
	curMean := meanOf(current)

	m.BaselineValue = baseMean
	m.CurrentValue = curMean
	m.AbsoluteDelta = curMean - baseMean
	if baseMean != 0 {
		m.RelativeDelta = (curMean - baseMean) / baseMean
	}

	std := stdOf(baseline, baseMean)
	if std > 0 && len(current) > 0 {
		se := std / math.Sqrt(float64(len(current)))
		m.ZScore = (curMean - baseMean) / se
		m.PValue = twoSidedP(m.ZScore)
		m.Significant = m.PValue < cfg.SignificanceLevel &&
			exceedsRelativeGate(cfg, baseMean, curMean, m.RelativeDelta)
	} else {
		// No baseline variance to test against; fall back to the relative
		// change gate alone.
		m.PValue = 1
		m.Significant = exceedsRelativeGate(cfg, baseMean, curMean, m.RelativeDelta)
	}
}

// exceedsRelativeGate applies the minimum-relative-change gate, which exists
// to exclude negligible changes. Any nonzero move off a zero baseline is the
// largest relative change possible and always passes; a division there would
// leave RelativeDelta at zero and invert the gate's intent.
func exceedsRelativeGate(cfg drift.ModuleConfig, baseline, current, relative float64) bool {
	if baseline == 0 {
		return current != 0
	}
	return math.Abs(relative) >= cfg.MinRelativeChange
}

type weightedValue struct {
	value  float64
	weight float64
}

func weightedMeans(aggregates []*drift.Aggregate) []weightedValue {
	out := make([]weightedValue, 0, len(aggregates))
	for _, a := range aggregates {
		if a.SampleCount == 0 {
			continue
		}
		out = append(out, weightedValue{value: a.Mean, weight: float64(a.SampleCount)})
	}
	return out
}

func dailySums(aggregates []*drift.Aggregate) []weightedValue {
	out := make([]weightedValue, 0, len(aggregates))
	for _, a := range aggregates {
		out = append(out, weightedValue{value: a.Sum.Float64(), weight: 1})
	}
	return out
}

func meanOf(vals []weightedValue) float64 {
	var sum, weight float64
	for _, v := range vals {
		sum += v.value * v.weight
		weight += v.weight
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func stdOf(vals []weightedValue, mean float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v.value - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func usableBuckets(aggregates []*drift.Aggregate) []*drift.Aggregate {
	out := make([]*drift.Aggregate, 0, len(aggregates))
	for _, a := range aggregates {
		if a.LowSample {
			continue
		}
		out = append(out, a)
	}
	return out
}

func totalSamples(aggregates []*drift.Aggregate) int {
	var n int
	for _, a := range aggregates {
		n += a.SampleCount
	}
	return n
}

func weightedCompleteness(baseline, current []*drift.Aggregate) float64 {
	var sum, weight float64
	for _, a := range append(append([]*drift.Aggregate{}, baseline...), current...) {
		w := float64(a.SampleCount)
		sum += a.Completeness * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// normalCDF is the standard normal cumulative distribution function
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// twoSidedP converts a z statistic to a two-sided p-value
func twoSidedP(z float64) float64 {
	return 2 * (1 - normalCDF(math.Abs(z)))
}
