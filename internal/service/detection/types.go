package detection

import (
	"time"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
)

// SuppressionAction is the suppression engine's decision for a candidate
type SuppressionAction string

const (
	ActionCreate       SuppressionAction = "create"
	ActionCreateBadged SuppressionAction = "create_badged"
	ActionWithhold     SuppressionAction = "withhold"
)

// SuppressionDecision carries the action and, for badged creations, the
// operator-facing context text.
type SuppressionDecision struct {
	Action SuppressionAction
	Badge  string
	Reason string
}

// SignalFilter selects signals for the read model exposed to collaborators
type SignalFilter struct {
	TenantID    string
	Module      drift.Module
	MinSeverity drift.Severity
	From        time.Time
	To          time.Time
	Limit       int
}

// aggregationResult is the outcome of the build phase for one run
type aggregationResult struct {
	aggregates []*drift.Aggregate
	flagged    int // low-sample buckets, produced but excluded from comparison
	rejected   int // malformed records excluded from their buckets
	warnings   []string
}
