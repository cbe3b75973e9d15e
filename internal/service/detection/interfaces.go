package detection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// RecordSource is the read-only raw-record feed supplied by the ingestion
// collaborator. Records are guaranteed a tenant id and timestamp; every other
// field may be absent.
type RecordSource interface {
	// FetchRecords returns all records for the tenant inside the window
	FetchRecords(ctx context.Context, tenantID string, window values.Window) ([]drift.RawRecord, error)
}

// AggregateRepository persists per-entity, per-period summary rows.
// Uniqueness on (tenant, module, entity, period) is a storage constraint;
// rebuilding a period overwrites the row.
type AggregateRepository interface {
	// UpsertBatch writes aggregates with insert-or-replace semantics and
	// returns the number of rows written
	UpsertBatch(ctx context.Context, aggregates []*drift.Aggregate) (int, error)
	// ListWindow returns all aggregates for the tenant and module whose
	// period start falls inside the window
	ListWindow(ctx context.Context, tenantID string, module drift.Module, window values.Window) ([]*drift.Aggregate, error)
}

// SignalRepository persists signals and their fanout events. Fingerprint
// uniqueness is a storage constraint; CreateWithEvent returns a conflict
// error when the fingerprint already exists.
type SignalRepository interface {
	// FingerprintExists reports whether a signal with the fingerprint exists
	FingerprintExists(ctx context.Context, fingerprint string) (bool, error)
	// CreateWithEvent inserts the signal and its event in one transaction
	CreateWithEvent(ctx context.Context, signal *drift.Signal, event *drift.Event) error
	// GetByID returns a signal by id
	GetByID(ctx context.Context, id uuid.UUID) (*drift.Signal, error)
	// UpdateStatus sets the denormalized display status
	UpdateStatus(ctx context.Context, id uuid.UUID, status drift.SignalStatus) error
	// List returns signals matching the filter, newest first
	List(ctx context.Context, filter SignalFilter) ([]*drift.Signal, error)
}

// JudgmentRepository reads the append-only operator judgment log
type JudgmentRepository interface {
	// LatestJudgment returns the most recent judgment for the entity and
	// module, or nil when none exists
	LatestJudgment(ctx context.Context, tenantID, entity string, module drift.Module) (*drift.OperatorJudgment, error)
	// CountNoiseSince counts noise verdicts for the entity and module at or
	// after the given time
	CountNoiseSince(ctx context.Context, tenantID, entity string, module drift.Module, since time.Time) (int, error)
}

// SuppressionLog records withheld decisions for audit. Append-only.
type SuppressionLog interface {
	RecordWithheld(ctx context.Context, tenantID, entity string, module drift.Module, reason string, at time.Time) error
}

// SuppressionCache is an optional read-through cache over the suppression
// projection. Implementations must tolerate being nil in the engine.
type SuppressionCache interface {
	Get(ctx context.Context, tenantID, entity string, module drift.Module) (*drift.SuppressionState, bool, error)
	Set(ctx context.Context, tenantID, entity string, module drift.Module, state *drift.SuppressionState) error
	Invalidate(ctx context.Context, tenantID, entity string, module drift.Module) error
}

// RunLocker serializes runs at (tenant, module) granularity. TryAcquire fails
// fast with a concurrency error when another run holds the lock.
type RunLocker interface {
	TryAcquire(ctx context.Context, tenantID string, module drift.Module) (release func(context.Context) error, err error)
}
