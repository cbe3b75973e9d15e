package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
)

func measurement(delta float64, baseSamples, curSamples int, completeness float64) *drift.DriftMeasurement {
	return &drift.DriftMeasurement{
		TenantID:        "tenant-a",
		Entity:          "PAYER-001",
		AbsoluteDelta:   delta,
		BaselineSamples: baseSamples,
		CurrentSamples:  curSamples,
		Completeness:    completeness,
		Significant:     true,
	}
}

func TestScore_PaymentTimingHigh(t *testing.T) {
	cfg := DefaultModuleConfigs()[drift.ModulePaymentTiming]

	// 60 combined samples against a saturation point of 80, full completeness:
	// confidence = 0.7*(60/80) + 0.3*1.0 = 0.825.
	m := measurement(9.8, 40, 20, 1.0)

	severity, confidence, keep := score(cfg, m)
	assert.True(t, keep)
	assert.Equal(t, drift.SeverityHigh, severity)
	assert.InDelta(t, 0.825, confidence, 1e-9)
}

func TestScore_SampleSaturation(t *testing.T) {
	cfg := DefaultModuleConfigs()[drift.ModuleDenialRate]

	// Combined samples far past saturation cap the sample term at 1.
	m := measurement(12, 4000, 1000, 1.0)
	_, confidence, _ := score(cfg, m)
	assert.InDelta(t, 1.0, confidence, 1e-9)
}

func TestScore_FloorDropsWeakCandidates(t *testing.T) {
	cfg := DefaultModuleConfigs()[drift.ModuleDenialRate] // floor low/0.4

	// Tiny delta lands on low severity; poor samples and completeness push
	// confidence under the floor.
	m := measurement(1, 4, 4, 0.1)
	severity, confidence, keep := score(cfg, m)
	assert.Equal(t, drift.SeverityLow, severity)
	assert.Less(t, confidence, 0.4)
	assert.False(t, keep, "below the alert floor is dropped at the source")
}

func TestScore_LowSeverityAboveFloorKept(t *testing.T) {
	cfg := DefaultModuleConfigs()[drift.ModuleDenialRate]

	m := measurement(2, 100, 60, 1.0)
	severity, confidence, keep := score(cfg, m)
	assert.Equal(t, drift.SeverityLow, severity)
	assert.GreaterOrEqual(t, confidence, 0.4)
	assert.True(t, keep)
}

func TestScore_ConfidenceMonotoneInSamples(t *testing.T) {
	cfg := DefaultModuleConfigs()[drift.ModuleDenialRate]

	prev := -1.0
	for samples := 10; samples <= 200; samples += 10 {
		_, confidence, _ := score(cfg, measurement(8, samples, samples, 0.9))
		assert.GreaterOrEqual(t, confidence, prev, "confidence regressed at samples=%d", samples)
		prev = confidence
	}
}

func TestScore_ConfidenceBounded(t *testing.T) {
	cfg := DefaultModuleConfigs()[drift.ModuleDenialRate]

	_, confidence, _ := score(cfg, measurement(8, 0, 0, 0))
	assert.GreaterOrEqual(t, confidence, 0.0)

	_, confidence, _ = score(cfg, measurement(8, 100000, 100000, 1.0))
	assert.LessOrEqual(t, confidence, 1.0)
}
