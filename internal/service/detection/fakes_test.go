package detection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// In-memory collaborators for engine tests. They reproduce the storage
// contracts the real repositories enforce, including fingerprint uniqueness
// and aggregate overwrite-on-rebuild.

type fakeRecordSource struct {
	records []drift.RawRecord
	err     error
}

func (f *fakeRecordSource) FetchRecords(_ context.Context, tenantID string, window values.Window) ([]drift.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []drift.RawRecord
	for _, r := range f.records {
		if r.TenantID == tenantID && window.Contains(r.OccurredAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeAggregateRepo struct {
	mu   sync.Mutex
	rows map[string]*drift.Aggregate
}

func newFakeAggregateRepo() *fakeAggregateRepo {
	return &fakeAggregateRepo{rows: make(map[string]*drift.Aggregate)}
}

func aggregateKey(a *drift.Aggregate) string {
	return a.TenantID + "|" + string(a.Module) + "|" + a.Entity + "|" + a.Period.Key()
}

func (f *fakeAggregateRepo) UpsertBatch(_ context.Context, aggregates []*drift.Aggregate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range aggregates {
		f.rows[aggregateKey(a)] = a
	}
	return len(aggregates), nil
}

func (f *fakeAggregateRepo) ListWindow(_ context.Context, tenantID string, module drift.Module, window values.Window) ([]*drift.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*drift.Aggregate
	for _, a := range f.rows {
		if a.TenantID == tenantID && a.Module == module && window.Contains(a.Period.Start()) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Period.Before(out[j].Period)
	})
	return out, nil
}

type fakeSignalRepo struct {
	mu      sync.Mutex
	signals map[string]*drift.Signal // keyed by fingerprint
	events  []*drift.Event
}

func newFakeSignalRepo() *fakeSignalRepo {
	return &fakeSignalRepo{signals: make(map[string]*drift.Signal)}
}

func (f *fakeSignalRepo) FingerprintExists(_ context.Context, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.signals[fingerprint]
	return ok, nil
}

func (f *fakeSignalRepo) CreateWithEvent(_ context.Context, signal *drift.Signal, event *drift.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.signals[signal.Fingerprint]; ok {
		return errors.NewConflictError("DUPLICATE_FINGERPRINT", "signal fingerprint already exists")
	}
	f.signals[signal.Fingerprint] = signal
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSignalRepo) GetByID(_ context.Context, id uuid.UUID) (*drift.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.signals {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSignalRepo) UpdateStatus(_ context.Context, id uuid.UUID, status drift.SignalStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.signals {
		if s.ID == id {
			s.Status = status
			return nil
		}
	}
	return errors.NewNotFoundError("signal")
}

func (f *fakeSignalRepo) List(_ context.Context, filter SignalFilter) ([]*drift.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*drift.Signal
	for _, s := range f.signals {
		if s.TenantID != filter.TenantID {
			continue
		}
		if filter.Module != "" && s.Module != filter.Module {
			continue
		}
		if filter.MinSeverity != "" && !s.Severity.AtLeast(filter.MinSeverity) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeSignalRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signals)
}

type fakeJudgmentRepo struct {
	mu        sync.Mutex
	judgments []*drift.OperatorJudgment
}

func (f *fakeJudgmentRepo) append(j *drift.OperatorJudgment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.judgments = append(f.judgments, j)
}

func (f *fakeJudgmentRepo) LatestJudgment(_ context.Context, tenantID, entity string, module drift.Module) (*drift.OperatorJudgment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *drift.OperatorJudgment
	for _, j := range f.judgments {
		if j.TenantID != tenantID || j.Entity != entity || j.Module != module {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	return latest, nil
}

func (f *fakeJudgmentRepo) CountNoiseSince(_ context.Context, tenantID, entity string, module drift.Module, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, j := range f.judgments {
		if j.TenantID == tenantID && j.Entity == entity && j.Module == module &&
			j.Verdict == drift.VerdictNoise && !j.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeSuppressionLog struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeSuppressionLog) RecordWithheld(_ context.Context, _, _ string, _ drift.Module, reason string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	return nil
}

type fakeSuppressionCache struct {
	mu      sync.Mutex
	entries map[string]*drift.SuppressionState
	gets    int
	sets    int
	err     error
}

func newFakeSuppressionCache() *fakeSuppressionCache {
	return &fakeSuppressionCache{entries: make(map[string]*drift.SuppressionState)}
}

func cacheKey(tenantID, entity string, module drift.Module) string {
	return tenantID + "|" + entity + "|" + string(module)
}

func (f *fakeSuppressionCache) Get(_ context.Context, tenantID, entity string, module drift.Module) (*drift.SuppressionState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, false, f.err
	}
	state, ok := f.entries[cacheKey(tenantID, entity, module)]
	return state, ok, nil
}

func (f *fakeSuppressionCache) Set(_ context.Context, tenantID, entity string, module drift.Module, state *drift.SuppressionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.err != nil {
		return f.err
	}
	f.entries[cacheKey(tenantID, entity, module)] = state
	return nil
}

func (f *fakeSuppressionCache) Invalidate(_ context.Context, tenantID, entity string, module drift.Module) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, cacheKey(tenantID, entity, module))
	return nil
}

type fakeRunLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeRunLocker() *fakeRunLocker {
	return &fakeRunLocker{held: make(map[string]bool)}
}

func (f *fakeRunLocker) TryAcquire(_ context.Context, tenantID string, module drift.Module) (func(context.Context) error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tenantID + "|" + string(module)
	if f.held[key] {
		return nil, errors.NewConcurrencyError("another run holds the lock for this tenant and module")
	}
	f.held[key] = true
	release := func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		return nil
	}
	return release, nil
}
