package drift

import (
	"math"
	"time"
)

// SeverityRule is one row of an ordered threshold table. A measurement
// qualifies when its delta magnitude and confidence both meet the row.
type SeverityRule struct {
	MinDelta      float64
	MinConfidence float64
	Severity      Severity
}

// SeverityTable is evaluated from most to least severe; first match wins.
// Delta units are module units (rate points, dollars, days).
type SeverityTable []SeverityRule

// Evaluate returns the severity tier for the given delta magnitude and
// confidence. Falls through to low when no row matches.
func (t SeverityTable) Evaluate(delta, confidence float64) Severity {
	magnitude := math.Abs(delta)
	for _, rule := range t {
		if magnitude >= rule.MinDelta && confidence >= rule.MinConfidence {
			return rule.Severity
		}
	}
	return SeverityLow
}

// ModuleConfig carries everything module-specific the shared engine needs:
// windows, thresholds, minimum samples and the severity table. The statistical
// core is generic over this configuration.
type ModuleConfig struct {
	Module Module
	Metric MetricKind

	// Window sizing in day periods
	BaselineDays int
	CurrentDays  int

	// Policy gates
	MinBucketSamples   int
	MinCombinedSamples int
	MinCompleteness    float64
	MinRelativeChange  float64 // required relative delta, as a fraction
	SignificanceLevel  float64

	Severity SeverityTable

	// Alert floor: candidates below this severity with confidence under the
	// floor are dropped at the scorer instead of created and suppressed later.
	FloorSeverity   Severity
	FloorConfidence float64

	SuppressionTTL time.Duration
}

// LookbackDays returns the total days of raw records a run must cover.
func (c ModuleConfig) LookbackDays() int {
	return c.BaselineDays + c.CurrentDays
}
