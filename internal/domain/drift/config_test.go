package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSeverityTable() SeverityTable {
	return SeverityTable{
		{MinDelta: 10, MinConfidence: 0.75, Severity: SeverityCritical},
		{MinDelta: 7, MinConfidence: 0.65, Severity: SeverityHigh},
		{MinDelta: 4, MinConfidence: 0.55, Severity: SeverityMedium},
	}
}

func TestSeverityTable_Evaluate(t *testing.T) {
	table := testSeverityTable()

	tests := []struct {
		name       string
		delta      float64
		confidence float64
		want       Severity
	}{
		{"clears the top row", 12, 0.9, SeverityCritical},
		{"exact thresholds match", 10, 0.75, SeverityCritical},
		{"big delta low confidence drops a tier", 12, 0.70, SeverityHigh},
		{"mid tier", 8, 0.7, SeverityHigh},
		{"low tier", 5, 0.6, SeverityMedium},
		{"no row matches", 2, 0.9, SeverityLow},
		{"high confidence cannot rescue tiny delta", 1, 1.0, SeverityLow},
		{"negative delta uses magnitude", -12, 0.9, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Evaluate(tt.delta, tt.confidence))
		})
	}
}

func TestSeverityTable_Monotonic(t *testing.T) {
	table := testSeverityTable()

	// Raising delta at fixed confidence never lowers severity.
	prev := SeverityLow
	for delta := 0.0; delta <= 20; delta += 0.5 {
		got := table.Evaluate(delta, 0.9)
		assert.True(t, got.AtLeast(prev), "severity regressed at delta=%v", delta)
		prev = got
	}

	// Raising confidence at fixed delta never lowers severity.
	prev = SeverityLow
	for conf := 0.0; conf <= 1.0; conf += 0.05 {
		got := table.Evaluate(11, conf)
		assert.True(t, got.AtLeast(prev), "severity regressed at confidence=%v", conf)
		prev = got
	}
}

func TestSeverity_Rank(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.True(t, SeverityLow.AtLeast(SeverityLow))
}

func TestSeveritiesAtOrAbove(t *testing.T) {
	assert.Equal(t,
		[]Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical},
		SeveritiesAtOrAbove(SeverityLow))
	assert.Equal(t,
		[]Severity{SeverityHigh, SeverityCritical},
		SeveritiesAtOrAbove(SeverityHigh))
	assert.Equal(t,
		[]Severity{SeverityCritical},
		SeveritiesAtOrAbove(SeverityCritical))
}

func TestStatusForVerdict(t *testing.T) {
	assert.Equal(t, StatusResolved, StatusForVerdict(VerdictNoise))
	assert.Equal(t, StatusAcknowledged, StatusForVerdict(VerdictConfirmed))
	assert.Equal(t, StatusInReview, StatusForVerdict(VerdictNeedsFollowUp))
	assert.Equal(t, StatusOpen, StatusForVerdict(Verdict("unknown")))
}

func TestModuleConfig_LookbackDays(t *testing.T) {
	cfg := ModuleConfig{BaselineDays: 60, CurrentDays: 14}
	assert.Equal(t, 74, cfg.LookbackDays())
}
