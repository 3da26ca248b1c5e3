package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craftport/opsmon/internal/monitoring/metrics"
	"github.com/craftport/opsmon/internal/monitoring/model"
	"github.com/craftport/opsmon/internal/monitoring/service/evaluate"
	"github.com/craftport/opsmon/internal/monitoring/service/registry"
	"github.com/craftport/opsmon/internal/monitoring/service/state"
)

// EscalationThreshold is the consecutive-failure count at which an alert is
// created. Only the crossing fires; sustained failure does not re-alert.
const EscalationThreshold = 3

// TenantSource lists the tenants that tenant-scoped monitors fan out across.
type TenantSource interface {
	ActiveTenants(ctx context.Context) ([]string, error)
}

// HistoryAppender records check results durably. Appends are best-effort:
// the scheduler logs and swallows failures.
type HistoryAppender interface {
	AppendHistory(ctx context.Context, rec model.HealthCheckRecord) error
}

// Escalator turns a threshold-crossing failure streak into a dispatched alert.
type Escalator interface {
	Escalate(ctx context.Context, rec model.HealthCheckRecord) (*model.Alert, error)
}

// Scheduler drives the tiered check cadence and owns the per-check pipeline:
// probe, failure tracking, caching, history, and escalation.
type Scheduler struct {
	registry  *registry.Registry
	state     state.Store
	history   HistoryAppender
	tenants   TenantSource
	escalator Escalator

	maxConcurrent int
	now           func() time.Time
}

func New(reg *registry.Registry, st state.Store, history HistoryAppender, tenants TenantSource, escalator Escalator) *Scheduler {
	return &Scheduler{
		registry:      reg,
		state:         st,
		history:       history,
		tenants:       tenants,
		escalator:     escalator,
		maxConcurrent: 16,
		now:           time.Now,
	}
}

// WithMaxConcurrent bounds probe fan-out per tier run.
func (s *Scheduler) WithMaxConcurrent(n int) *Scheduler {
	if n > 0 {
		s.maxConcurrent = n
	}
	return s
}

// WithClock overrides the time source. Used in tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// DueTiers computes which tiers should run now by comparing each tier's
// representative service last-run time against the tier interval. A tier
// that has never run is overdue by definition.
func (s *Scheduler) DueTiers(ctx context.Context) []model.ServiceTier {
	var due []model.ServiceTier
	for _, tier := range model.Tiers {
		rep, ok := s.registry.Representative(tier)
		if !ok {
			continue
		}
		lastRun, ran, err := s.state.GetLastRun(ctx, rep)
		if err != nil {
			log.Error().Err(err).Str("tier", string(tier)).Msg("failed to read tier last-run time")
			continue
		}
		if !ran || s.now().Sub(lastRun) >= tier.Interval() {
			due = append(due, tier)
		}
	}
	return due
}

// RunScheduled is the periodic entry point. It runs every due tier and then
// stamps fresh last-run times for all services in the tiers that ran.
func (s *Scheduler) RunScheduled(ctx context.Context) {
	due := s.DueTiers(ctx)
	if len(due) == 0 {
		log.Debug().Msg("no tiers due")
		return
	}
	for _, tier := range due {
		s.RunTier(ctx, tier)
	}
}

// RunAll bypasses the due-time check and force-runs every tier, reusing the
// exact per-check pipeline of scheduled runs.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, tier := range model.Tiers {
		if len(s.registry.ListByTier(tier)) == 0 {
			continue
		}
		s.RunTier(ctx, tier)
	}
}

// RunTier executes every monitor of one tier: platform-wide monitors once,
// tenant-scoped monitors once per active tenant, all concurrently within the
// fan-out bound. Afterwards it stamps last-run for every service in the tier
// so per-service diagnostics stay accurate.
func (s *Scheduler) RunTier(ctx context.Context, tier model.ServiceTier) {
	monitors := s.registry.ListByTier(tier)
	if len(monitors) == 0 {
		return
	}
	started := s.now()
	log.Info().Str("tier", string(tier)).Int("monitors", len(monitors)).Msg("running tier health checks")

	var platform, tenantScoped []registry.Monitor
	for _, m := range monitors {
		if m.RequiresTenant {
			tenantScoped = append(tenantScoped, m)
		} else {
			platform = append(platform, m)
		}
	}

	var tenantIDs []string
	if len(tenantScoped) > 0 {
		ids, err := s.tenants.ActiveTenants(ctx)
		if err != nil {
			log.Error().Err(err).Str("tier", string(tier)).Msg("failed to load active tenants; skipping tenant-scoped checks")
		} else {
			tenantIDs = ids
		}
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	run := func(m registry.Monitor, tenantID string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.RunCheck(ctx, m, tenantID)
		}()
	}
	for _, m := range platform {
		run(m, "")
	}
	for _, m := range tenantScoped {
		for _, tenantID := range tenantIDs {
			run(m, tenantID)
		}
	}
	wg.Wait()

	for _, m := range monitors {
		if err := s.state.SetLastRun(ctx, m.Name, started); err != nil {
			log.Error().Err(err).Str("service", m.Name).Msg("failed to stamp last-run time")
		}
	}
	metrics.TierRunsTotal.WithLabelValues(string(tier)).Inc()
	log.Info().Str("tier", string(tier)).Dur("took", s.now().Sub(started)).Msg("tier health checks complete")
}

// RunTenant runs every tenant-scoped monitor for one tenant plus every
// platform monitor once, and aggregates an overall status for the report.
func (s *Scheduler) RunTenant(ctx context.Context, tenantID string) model.TenantReport {
	var (
		mu      sync.Mutex
		records []model.HealthCheckRecord
	)
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	run := func(m registry.Monitor, scopedTenant string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			rec := s.RunCheck(ctx, m, scopedTenant)
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
		}()
	}
	for _, m := range s.registry.ListTenantScoped() {
		run(m, tenantID)
	}
	for _, m := range s.registry.ListPlatform() {
		run(m, "")
	}
	wg.Wait()

	statuses := make([]model.HealthStatus, 0, len(records))
	for _, r := range records {
		statuses = append(statuses, r.Status)
	}
	return model.TenantReport{
		TenantID: tenantID,
		Status:   evaluate.Aggregate(statuses),
		Checks:   records,
		RanAt:    s.now().UTC(),
	}
}

// RunMonitor runs one named monitor. An unknown name is data, not an error:
// it yields an unknown-status record so a batch caller never aborts.
func (s *Scheduler) RunMonitor(ctx context.Context, name, tenantID string) model.HealthCheckRecord {
	m, ok := s.registry.Get(name)
	if !ok {
		return model.HealthCheckRecord{
			Service:   name,
			TenantID:  tenantID,
			Status:    model.StatusUnknown,
			Details:   map[string]any{"lookup_error": fmt.Sprintf("no monitor registered under %q", name)},
			CheckedAt: s.now().UTC(),
		}
	}
	return s.RunCheck(ctx, m, tenantID)
}

// RunCheck is the single-check pipeline shared by every entry point:
// probe -> failure counter -> cache -> history -> crossing detection.
func (s *Scheduler) RunCheck(ctx context.Context, m registry.Monitor, tenantID string) model.HealthCheckRecord {
	res := s.executeProbe(ctx, m, tenantID)

	prev, err := s.state.GetFailures(ctx, m.Name, tenantID)
	if err != nil {
		log.Error().Err(err).Str("service", m.Name).Str("tenant", tenantID).Msg("failed to read failure counter")
	}
	var count int
	if res.Status == model.StatusUnhealthy {
		count, err = s.state.IncrFailures(ctx, m.Name, tenantID)
		if err != nil {
			log.Error().Err(err).Str("service", m.Name).Str("tenant", tenantID).Msg("failed to increment failure counter")
			count = prev + 1
		}
	} else {
		if err := s.state.ResetFailures(ctx, m.Name, tenantID); err != nil {
			log.Error().Err(err).Str("service", m.Name).Str("tenant", tenantID).Msg("failed to reset failure counter")
		}
		count = 0
	}

	rec := model.HealthCheckRecord{
		Service:             m.Name,
		TenantID:            tenantID,
		Tier:                m.Tier,
		Status:              res.Status,
		LatencyMs:           res.LatencyMs,
		Details:             res.Details,
		Error:               res.Error,
		CheckedAt:           s.now().UTC(),
		ConsecutiveFailures: count,
	}

	if err := s.state.CacheResult(ctx, rec); err != nil {
		log.Error().Err(err).Str("service", m.Name).Str("tenant", tenantID).Msg("failed to cache check result")
	}
	if s.history != nil {
		if err := s.history.AppendHistory(ctx, rec); err != nil {
			// history is best-effort and must never block the pipeline
			log.Warn().Err(err).Str("service", m.Name).Str("tenant", tenantID).Msg("failed to append check history")
		}
	}

	metrics.ChecksTotal.WithLabelValues(m.Name, string(rec.Status)).Inc()

	if count >= EscalationThreshold && prev < EscalationThreshold && s.escalator != nil {
		if _, err := s.escalator.Escalate(ctx, rec); err != nil {
			log.Error().Err(err).Str("service", m.Name).Str("tenant", tenantID).Msg("alert escalation failed")
		}
	}
	return rec
}

// executeProbe runs the probe with a panic guard and fills in latency and
// status classification when the probe left them out.
func (s *Scheduler) executeProbe(ctx context.Context, m registry.Monitor, tenantID string) (res model.CheckResult) {
	started := s.now()
	defer func() {
		elapsed := s.now().Sub(started)
		metrics.CheckDuration.WithLabelValues(m.Name, string(m.Tier)).Observe(elapsed.Seconds())
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("service", m.Name).Str("tenant", tenantID).Msg("probe panicked")
			res = model.CheckResult{
				Status:    model.StatusUnhealthy,
				LatencyMs: elapsed.Milliseconds(),
				Error:     fmt.Sprintf("probe panic: %v", r),
			}
		}
		if res.LatencyMs == 0 {
			res.LatencyMs = elapsed.Milliseconds()
		}
		if res.Status == "" {
			res.Status = evaluate.EvaluateLatency(res.LatencyMs, 0, 0)
		}
	}()
	return m.Probe.Check(ctx, tenantID)
}
