package detection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
	"github.com/davidleathers/claimsignal/internal/domain/values"
	"github.com/davidleathers/claimsignal/internal/metrics"
)

const defaultConcurrency = 8

// Options tunes the run orchestration
type Options struct {
	// Concurrency bounds the per-entity worker pool
	Concurrency int
	// PublishRate limits signal publishes per second to protect storage;
	// zero disables the limiter
	PublishRate  float64
	PublishBurst int
	Metrics      *metrics.Registry
	// Clock overrides time.Now, for tests
	Clock func() time.Time
}

// Service is the shared detection engine: one logical run per
// (tenant, module, as-of-date), build-then-compare, with per-entity units of
// work that are independently transactional.
type Service struct {
	source      RecordSource
	aggregates  AggregateRepository
	signals     SignalRepository
	suppression *SuppressionEngine
	locker      RunLocker
	modules     map[drift.Module]drift.ModuleConfig

	limiter     *rate.Limiter
	registry    *metrics.Registry
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// NewService creates the detection engine service
func NewService(
	source RecordSource,
	aggregates AggregateRepository,
	signals SignalRepository,
	suppression *SuppressionEngine,
	locker RunLocker,
	modules map[drift.Module]drift.ModuleConfig,
	logger *zap.Logger,
	opts Options,
) *Service {
	if modules == nil {
		modules = DefaultModuleConfigs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		source:      source,
		aggregates:  aggregates,
		signals:     signals,
		suppression: suppression,
		locker:      locker,
		modules:     modules,
		registry:    opts.Metrics,
		logger:      logger,
		concurrency: opts.Concurrency,
		now:         opts.Clock,
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.PublishRate > 0 {
		burst := opts.PublishBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.PublishRate), burst)
	}
	return s
}

// RunDetection executes one batch run for (tenant, module, asOf). Entity
// failures become warnings in the summary; only failures that prevent any
// progress at all return an error. Re-running an already processed period is
// safe and creates zero new signals.
func (s *Service) RunDetection(ctx context.Context, tenantID string, module drift.Module, asOf time.Time) (*drift.RunSummary, error) {
	if tenantID == "" {
		return nil, errors.NewValidationError("MISSING_TENANT", "tenant id is required")
	}
	cfg, ok := s.modules[module]
	if !ok {
		return nil, errors.NewValidationError("UNKNOWN_MODULE", fmt.Sprintf("unknown detection module %q", module))
	}

	start := s.now()

	release, err := s.locker.TryAcquire(ctx, tenantID, module)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release run lock",
				zap.String("tenant_id", tenantID),
				zap.String("module", string(module)),
				zap.Error(err))
		}
	}()

	asOfPeriod := values.PeriodOf(asOf)
	currentWin := values.NewWindow(asOfPeriod.End(), cfg.CurrentDays)
	baselineWin := values.NewWindow(currentWin.Start, cfg.BaselineDays)
	lookback := values.Window{Start: baselineWin.Start, End: currentWin.End}

	summary := &drift.RunSummary{
		TenantID: tenantID,
		Module:   module,
		AsOf:     asOfPeriod.Key(),
	}

	// Phase 1: build and persist every aggregate before anything reads them.
	records, err := s.source.FetchRecords(ctx, tenantID, lookback)
	if err != nil {
		return nil, errors.NewInternalError("failed to fetch raw records").WithCause(err)
	}
	built := buildAggregates(cfg, tenantID, records, lookback, s.now())
	created, err := s.aggregates.UpsertBatch(ctx, built.aggregates)
	if err != nil {
		return nil, errors.NewInternalError("failed to persist aggregates").WithCause(err)
	}
	summary.AggregatesCreated = created
	summary.AggregatesSkipped = built.flagged
	summary.RecordsRejected = built.rejected
	summary.Warnings = append(summary.Warnings, built.warnings...)

	// Phase 2: read the persisted aggregates back and fan out per entity.
	all, err := s.aggregates.ListWindow(ctx, tenantID, module, lookback)
	if err != nil {
		return nil, errors.NewInternalError("failed to read aggregates").WithCause(err)
	}

	byEntity := make(map[string][]*drift.Aggregate)
	for _, a := range all {
		byEntity[a.Entity] = append(byEntity[a.Entity], a)
	}
	entities := make([]string, 0, len(byEntity))
	for entity := range byEntity {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.concurrency)
	)

	for _, entity := range entities {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(entity string, aggs []*drift.Aggregate) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := s.processEntity(ctx, cfg, tenantID, entity, aggs, baselineWin, currentWin)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Warnings = append(summary.Warnings, fmt.Sprintf("entity %q: %v", entity, err))
				return
			}
			switch outcome {
			case outcomeCreated:
				summary.SignalsCreated++
			case outcomeWithheld:
				summary.SignalsWithheld++
			case outcomeDuplicate:
				summary.SignalsSkippedDuplicate++
			}
		}(entity, byEntity[entity])
	}
	wg.Wait()

	if ctx.Err() != nil {
		// Committed units of work stand; the next run picks up the rest.
		return summary, errors.NewInternalError("run aborted").WithCause(ctx.Err())
	}

	s.registry.RecordRun(ctx, summary, s.now().Sub(start))
	s.logger.Info("detection run completed",
		zap.String("tenant_id", tenantID),
		zap.String("module", string(module)),
		zap.String("as_of", summary.AsOf),
		zap.Int("aggregates_created", summary.AggregatesCreated),
		zap.Int("signals_created", summary.SignalsCreated),
		zap.Int("signals_withheld", summary.SignalsWithheld),
		zap.Int("duplicate_skips", summary.SignalsSkippedDuplicate),
		zap.Int("warnings", len(summary.Warnings)))

	return summary, nil
}

// ListSignals exposes the signal read model to collaborators
func (s *Service) ListSignals(ctx context.Context, filter SignalFilter) ([]*drift.Signal, error) {
	if filter.TenantID == "" {
		return nil, errors.NewValidationError("MISSING_TENANT", "tenant id is required")
	}
	return s.signals.List(ctx, filter)
}

type entityOutcome int

const (
	outcomeNone entityOutcome = iota
	outcomeCreated
	outcomeWithheld
	outcomeDuplicate
)

// processEntity runs the compare → score → dedup → suppress → publish chain
// for a single entity. Everything before publish is pure computation over
// already persisted aggregates.
func (s *Service) processEntity(ctx context.Context, cfg drift.ModuleConfig, tenantID, entity string, aggs []*drift.Aggregate, baselineWin, currentWin values.Window) (entityOutcome, error) {
	var baseline, current []*drift.Aggregate
	for _, a := range aggs {
		switch {
		case baselineWin.Contains(a.Period.Start()):
			baseline = append(baseline, a)
		case currentWin.Contains(a.Period.Start()):
			current = append(current, a)
		}
	}

	m := compareWindows(cfg, tenantID, entity, baseline, current, baselineWin, currentWin)
	if m == nil || !m.Significant {
		return outcomeNone, nil
	}

	severity, confidence, keep := score(cfg, m)
	if !keep {
		s.logger.Debug("candidate below alert floor",
			zap.String("entity", entity),
			zap.String("severity", string(severity)),
			zap.Float64("confidence", confidence))
		return outcomeNone, nil
	}

	fp := drift.Fingerprint(tenantID, entity, cfg.Module, cfg.Metric, currentWin.Start, currentWin.End)
	exists, err := s.signals.FingerprintExists(ctx, fp)
	if err != nil {
		return outcomeNone, errors.NewInternalError("fingerprint lookup failed").WithCause(err)
	}
	if exists {
		s.logger.Info("skipped: duplicate",
			zap.String("tenant_id", tenantID),
			zap.String("entity", entity),
			zap.String("fingerprint", fp))
		return outcomeDuplicate, nil
	}

	decision, err := s.suppression.Decide(ctx, tenantID, entity, cfg, s.now())
	if err != nil {
		return outcomeNone, err
	}
	if decision.Action == ActionWithhold {
		return outcomeWithheld, nil
	}

	signal, event := s.buildSignal(cfg, m, severity, confidence, fp, decision)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return outcomeNone, err
		}
	}

	// The unique fingerprint constraint is re-checked by the insert itself,
	// which closes the race between the existence check above and commit.
	if err := s.signals.CreateWithEvent(ctx, signal, event); err != nil {
		if errors.IsConflict(err) {
			s.logger.Info("skipped: duplicate",
				zap.String("tenant_id", tenantID),
				zap.String("entity", entity),
				zap.String("fingerprint", fp))
			return outcomeDuplicate, nil
		}
		return outcomeNone, errors.NewInternalError("failed to publish signal").WithCause(err)
	}

	s.logger.Info("signal created",
		zap.String("tenant_id", tenantID),
		zap.String("entity", entity),
		zap.String("module", string(cfg.Module)),
		zap.String("severity", string(severity)),
		zap.Float64("delta", m.AbsoluteDelta),
		zap.Float64("confidence", confidence))

	return outcomeCreated, nil
}

func (s *Service) buildSignal(cfg drift.ModuleConfig, m *drift.DriftMeasurement, severity drift.Severity, confidence float64, fingerprint string, decision SuppressionDecision) (*drift.Signal, *drift.Event) {
	now := s.now()

	signal := &drift.Signal{
		ID:              uuid.New(),
		TenantID:        m.TenantID,
		Entity:          m.Entity,
		Module:          cfg.Module,
		Metric:          cfg.Metric,
		BaselineValue:   m.BaselineValue,
		CurrentValue:    m.CurrentValue,
		AbsoluteDelta:   m.AbsoluteDelta,
		RelativeDelta:   m.RelativeDelta,
		Confidence:      confidence,
		Severity:        severity,
		BaselineSamples: m.BaselineSamples,
		CurrentSamples:  m.CurrentSamples,
		Fingerprint:     fingerprint,
		Badge:           decision.Badge,
		Status:          drift.StatusOpen,
		WindowStart:     m.CurrentWindow.Start,
		WindowEnd:       m.CurrentWindow.End,
		CreatedAt:       now,
	}

	event := &drift.Event{
		ID:            uuid.New(),
		TenantID:      m.TenantID,
		Type:          drift.EventSignalCreated,
		SignalID:      signal.ID,
		CorrelationID: uuid.New(),
		Payload: map[string]interface{}{
			"entity":         signal.Entity,
			"module":         string(signal.Module),
			"metric":         string(signal.Metric),
			"severity":       string(signal.Severity),
			"confidence":     signal.Confidence,
			"baseline_value": signal.BaselineValue,
			"current_value":  signal.CurrentValue,
			"absolute_delta": signal.AbsoluteDelta,
			"relative_delta": signal.RelativeDelta,
			"window_start":   signal.WindowStart.Format("2006-01-02"),
			"window_end":     signal.WindowEnd.Format("2006-01-02"),
		},
		CreatedAt: now,
	}

	return signal, event
}
