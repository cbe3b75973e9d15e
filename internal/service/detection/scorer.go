package detection

import (
	"math"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
)

// Confidence blend weights. The heuristic blends sample-size adequacy with
// the data-completeness ratio carried up from aggregation; it is a documented
// product heuristic, not a calibrated interval.
const (
	sampleWeight       = 0.7
	completenessWeight = 0.3
	// Sample adequacy saturates at this multiple of the combined minimum
	sampleSaturation = 4
)

// score maps a drift measurement to a severity tier and confidence. The
// second return is false when the candidate falls under the module's alert
// floor and should be dropped at the source instead of created and later
// suppressed.
func score(cfg drift.ModuleConfig, m *drift.DriftMeasurement) (drift.Severity, float64, bool) {
	confidence := confidenceFor(cfg, m)
	severity := cfg.Severity.Evaluate(m.AbsoluteDelta, confidence)

	if !severity.AtLeast(cfg.FloorSeverity) || (severity == cfg.FloorSeverity && confidence < cfg.FloorConfidence) {
		return severity, confidence, false
	}
	return severity, confidence, true
}

func confidenceFor(cfg drift.ModuleConfig, m *drift.DriftMeasurement) float64 {
	combined := float64(m.BaselineSamples + m.CurrentSamples)
	saturation := float64(sampleSaturation * cfg.MinCombinedSamples)

	sampleTerm := 1.0
	if saturation > 0 {
		sampleTerm = math.Min(1, combined/saturation)
	}

	confidence := sampleWeight*sampleTerm + completenessWeight*m.Completeness
	return math.Max(0, math.Min(1, confidence))
}
