package drift

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// Module identifies one detection module. Each module owns its Aggregate and
// Signal key space; modules for the same tenant may run concurrently.
type Module string

const (
	ModuleDenialRate    Module = "denial_rate"
	ModuleDeniedDollars Module = "denied_dollars"
	ModulePaymentTiming Module = "payment_timing"
)

// MetricKind selects the statistic computed per aggregate bucket and the
// comparison applied between windows.
type MetricKind string

const (
	MetricRate MetricKind = "rate"
	MetricSum  MetricKind = "sum"
	MetricMean MetricKind = "mean"
)

// Severity represents the alert tier assigned to a signal
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of the severity (higher is more severe).
func (s Severity) Rank() int {
	return severityRanks[s]
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// SeveritiesAtOrAbove returns every severity at least as severe as min, in
// ascending order. Storage filters use it because the text values do not rank
// lexicographically.
func SeveritiesAtOrAbove(min Severity) []Severity {
	all := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	out := make([]Severity, 0, len(all))
	for _, s := range all {
		if s.AtLeast(min) {
			out = append(out, s)
		}
	}
	return out
}

// SignalStatus is the denormalized display status of a signal. It mirrors the
// latest operator judgment and is never consulted for suppression decisions.
type SignalStatus string

const (
	StatusOpen         SignalStatus = "open"
	StatusResolved     SignalStatus = "resolved"
	StatusAcknowledged SignalStatus = "acknowledged"
	StatusInReview     SignalStatus = "in_review"
)

// Verdict is a human judgment about a previously created signal
type Verdict string

const (
	VerdictNoise         Verdict = "noise"
	VerdictConfirmed     Verdict = "confirmed"
	VerdictNeedsFollowUp Verdict = "needs_follow_up"
)

// StatusForVerdict maps an operator verdict to the signal display status.
func StatusForVerdict(v Verdict) SignalStatus {
	switch v {
	case VerdictNoise:
		return StatusResolved
	case VerdictConfirmed:
		return StatusAcknowledged
	case VerdictNeedsFollowUp:
		return StatusInReview
	}
	return StatusOpen
}

// RawRecord is one observed claim event, owned by the ingestion collaborator
// and consumed read-only. TenantID and OccurredAt are guaranteed; everything
// else may be absent and must be tolerated.
type RawRecord struct {
	TenantID      string
	Entity        string
	OccurredAt    time.Time
	Outcome       string
	Amount        *values.Money
	DaysToPayment *float64
}

// Record outcomes recognized by the reference modules
const (
	OutcomeDenied = "denied"
	OutcomePaid   = "paid"
)

// Aggregate is one summary row per (tenant, entity, period, module).
// Rebuilding the same period overwrites the row; it never duplicates.
type Aggregate struct {
	TenantID     string
	Module       Module
	Entity       string
	Period       values.Period
	SampleCount  int
	MatchedCount int // records matching the module outcome (rate numerator)
	Rate         float64
	Mean         float64
	Sum          values.Money
	Completeness float64
	LowSample    bool // below per-bucket minimum; excluded from comparison
	CreatedAt    time.Time
}

// DriftMeasurement is the raw output of a window comparison, before scoring.
type DriftMeasurement struct {
	TenantID        string
	Entity          string
	Module          Module
	Metric          MetricKind
	BaselineValue   float64
	CurrentValue    float64
	AbsoluteDelta   float64
	RelativeDelta   float64 // fraction of baseline value
	PValue          float64 // two-proportion test, rate metrics only
	ZScore          float64
	Significant     bool
	BaselineSamples int
	CurrentSamples  int
	Completeness    float64 // weighted completeness across both windows
	BaselineWindow  values.Window
	CurrentWindow   values.Window
}

// Signal is one detected drift event. Immutable after creation except for
// Status; never deleted.
type Signal struct {
	ID              uuid.UUID
	TenantID        string
	Entity          string
	Module          Module
	Metric          MetricKind
	BaselineValue   float64
	CurrentValue    float64
	AbsoluteDelta   float64
	RelativeDelta   float64
	Confidence      float64
	Severity        Severity
	BaselineSamples int
	CurrentSamples  int
	Fingerprint     string
	Badge           string
	Status          SignalStatus
	WindowStart     time.Time
	WindowEnd       time.Time
	CreatedAt       time.Time
}

// Event is an append-only fanout record committed in the same transaction as
// its signal. Write-once; consumed by dashboards and audit.
type Event struct {
	ID            uuid.UUID
	TenantID      string
	Type          string
	SignalID      uuid.UUID
	CorrelationID uuid.UUID
	Payload       map[string]interface{}
	CreatedAt     time.Time
}

// Event types emitted by the publisher
const (
	EventSignalCreated = "signal.created"
)

// OperatorJudgment is an append-only human verdict. Tenant, entity and module
// are denormalized from the signal so suppression lookups are a single query
// over the judgment log.
type OperatorJudgment struct {
	ID              uuid.UUID
	SignalID        uuid.UUID
	TenantID        string
	Entity          string
	Module          Module
	Verdict         Verdict
	Author          string
	RecoveredAmount *values.Money
	CreatedAt       time.Time
}

// SuppressionState is a read-side projection over the judgment log for one
// (tenant, entity, module). It is derived, never independently mutated.
type SuppressionState struct {
	LastVerdict     Verdict   `json:"last_verdict"`
	JudgedAt        time.Time `json:"judged_at"`
	SuppressedUntil time.Time `json:"suppressed_until,omitempty"`
	NoiseCount60d   int       `json:"noise_count_60d"`
}

// Active reports whether noise suppression is in effect at the given time.
func (s SuppressionState) Active(now time.Time) bool {
	return s.LastVerdict == VerdictNoise && now.Before(s.SuppressedUntil)
}

// RunSummary is returned synchronously from the detection trigger for
// operational visibility. It is not persisted.
type RunSummary struct {
	TenantID                string   `json:"tenant_id"`
	Module                  Module   `json:"module"`
	AsOf                    string   `json:"as_of"`
	AggregatesCreated       int      `json:"aggregates_created"`
	AggregatesSkipped       int      `json:"aggregates_skipped"`
	SignalsCreated          int      `json:"signals_created"`
	SignalsWithheld         int      `json:"signals_withheld"`
	SignalsSkippedDuplicate int      `json:"signals_skipped_duplicate"`
	RecordsRejected         int      `json:"records_rejected"`
	Warnings                []string `json:"warnings,omitempty"`
}
