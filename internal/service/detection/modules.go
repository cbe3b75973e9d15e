package detection

import (
	"time"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
)

const defaultSuppressionTTL = 14 * 24 * time.Hour

// DefaultModuleConfigs returns the shipped detection modules. Windows,
// thresholds and severity tables are module policy; the comparison and
// scoring algorithms are shared.
func DefaultModuleConfigs() map[drift.Module]drift.ModuleConfig {
	return map[drift.Module]drift.ModuleConfig{
		drift.ModuleDenialRate: {
			Module:             drift.ModuleDenialRate,
			Metric:             drift.MetricRate,
			BaselineDays:       60,
			CurrentDays:        14,
			MinBucketSamples:   5,
			MinCombinedSamples: 20,
			MinCompleteness:    0.8,
			MinRelativeChange:  0.25,
			SignificanceLevel:  0.05,
			// Delta units: percentage points of denial rate
			Severity: drift.SeverityTable{
				{MinDelta: 10, MinConfidence: 0.75, Severity: drift.SeverityCritical},
				{MinDelta: 7, MinConfidence: 0.65, Severity: drift.SeverityHigh},
				{MinDelta: 4, MinConfidence: 0.55, Severity: drift.SeverityMedium},
			},
			FloorSeverity:   drift.SeverityLow,
			FloorConfidence: 0.4,
			SuppressionTTL:  defaultSuppressionTTL,
		},
		drift.ModuleDeniedDollars: {
			Module:             drift.ModuleDeniedDollars,
			Metric:             drift.MetricSum,
			BaselineDays:       30,
			CurrentDays:        7,
			MinBucketSamples:   3,
			MinCombinedSamples: 20,
			MinCompleteness:    0.7,
			MinRelativeChange:  0.5,
			SignificanceLevel:  0.05,
			// Delta units: dollars of denied volume per day
			Severity: drift.SeverityTable{
				{MinDelta: 10000, MinConfidence: 0.75, Severity: drift.SeverityCritical},
				{MinDelta: 5000, MinConfidence: 0.65, Severity: drift.SeverityHigh},
				{MinDelta: 2000, MinConfidence: 0.55, Severity: drift.SeverityMedium},
			},
			FloorSeverity:   drift.SeverityLow,
			FloorConfidence: 0.4,
			SuppressionTTL:  defaultSuppressionTTL,
		},
		drift.ModulePaymentTiming: {
			Module:             drift.ModulePaymentTiming,
			Metric:             drift.MetricMean,
			BaselineDays:       60,
			CurrentDays:        14,
			MinBucketSamples:   3,
			MinCombinedSamples: 20,
			MinCompleteness:    0.8,
			MinRelativeChange:  0.15,
			SignificanceLevel:  0.05,
			// Delta units: days to payment
			Severity: drift.SeverityTable{
				{MinDelta: 14, MinConfidence: 0.75, Severity: drift.SeverityCritical},
				{MinDelta: 7, MinConfidence: 0.65, Severity: drift.SeverityHigh},
				{MinDelta: 4, MinConfidence: 0.55, Severity: drift.SeverityMedium},
			},
			FloorSeverity:   drift.SeverityLow,
			FloorConfidence: 0.4,
			SuppressionTTL:  defaultSuppressionTTL,
		},
	}
}
