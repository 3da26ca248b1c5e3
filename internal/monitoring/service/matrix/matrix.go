package matrix

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/craftport/opsmon/internal/monitoring/model"
	"github.com/craftport/opsmon/internal/monitoring/service/evaluate"
	"github.com/craftport/opsmon/internal/monitoring/service/registry"
	"github.com/craftport/opsmon/internal/monitoring/service/state"
)

// Builder computes read-side rollups over the cached check results. It never
// triggers probes; a dashboard request only ever sees the snapshot.
type Builder struct {
	registry *registry.Registry
	state    state.Store
	now      func() time.Time
}

func NewBuilder(reg *registry.Registry, st state.Store) *Builder {
	return &Builder{registry: reg, state: st, now: time.Now}
}

// TenantSummaries aggregates each tenant's applicable monitors to a single
// status plus the list of services currently degraded or unhealthy.
// Tenant-scoped monitors with no cached record count as unknown.
func (b *Builder) TenantSummaries(ctx context.Context, tenantIDs []string) ([]model.TenantSummary, error) {
	snap, err := b.snapshotByKey(ctx)
	if err != nil {
		return nil, err
	}
	tenantMonitors := b.registry.ListTenantScoped()
	out := make([]model.TenantSummary, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		var statuses []model.HealthStatus
		var failing []string
		for _, m := range tenantMonitors {
			status := cellStatus(snap, m.Name, tenantID)
			statuses = append(statuses, status)
			if status == model.StatusDegraded || status == model.StatusUnhealthy {
				failing = append(failing, m.Name)
			}
		}
		sort.Strings(failing)
		out = append(out, model.TenantSummary{
			TenantID:        tenantID,
			Status:          evaluate.Aggregate(statuses),
			ServicesChecked: len(tenantMonitors),
			FailingServices: failing,
		})
	}
	return out, nil
}

// ServiceSummaries aggregates each registered service across its scopes:
// the platform cell for platform monitors, every tenant cell for
// tenant-scoped ones. Includes average latency over present cells and the
// tenants currently failing the service.
func (b *Builder) ServiceSummaries(ctx context.Context) ([]model.ServiceSummary, error) {
	snap, err := b.state.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache snapshot: %w", err)
	}
	byService := map[string][]model.HealthCheckRecord{}
	for _, rec := range snap {
		byService[rec.Service] = append(byService[rec.Service], rec)
	}

	var out []model.ServiceSummary
	for _, name := range b.registry.Names() {
		m, _ := b.registry.Get(name)
		recs := byService[name]
		var statuses []model.HealthStatus
		var latencySum int64
		var failing []string
		for _, rec := range recs {
			statuses = append(statuses, rec.Status)
			latencySum += rec.LatencyMs
			if rec.TenantID != "" && (rec.Status == model.StatusDegraded || rec.Status == model.StatusUnhealthy) {
				failing = append(failing, rec.TenantID)
			}
		}
		var avgLatency int64
		if len(recs) > 0 {
			avgLatency = latencySum / int64(len(recs))
		}
		sort.Strings(failing)
		out = append(out, model.ServiceSummary{
			Service:        name,
			Tier:           m.Tier,
			Status:         evaluate.Aggregate(statuses),
			AvgLatencyMs:   avgLatency,
			FailingTenants: failing,
		})
	}
	return out, nil
}

// Matrix builds the full service x tenant grid of raw per-cell statuses.
// Platform monitors occupy the "platform" column. Every uninitialized cell
// renders as unknown, never as absent.
func (b *Builder) Matrix(ctx context.Context, tenantIDs []string) (*model.HealthMatrix, error) {
	snap, err := b.snapshotByKey(ctx)
	if err != nil {
		return nil, err
	}

	services := b.registry.Names()
	columns := append([]string{state.PlatformScope}, tenantIDs...)

	cells := make(map[string]map[string]model.HealthStatus, len(services))
	serviceRoll := make(map[string]model.HealthStatus, len(services))
	tenantStatuses := make(map[string][]model.HealthStatus, len(columns))

	for _, name := range services {
		m, _ := b.registry.Get(name)
		row := make(map[string]model.HealthStatus)
		var rowStatuses []model.HealthStatus
		if m.RequiresTenant {
			for _, tenantID := range tenantIDs {
				status := cellStatus(snap, name, tenantID)
				row[tenantID] = status
				rowStatuses = append(rowStatuses, status)
				tenantStatuses[tenantID] = append(tenantStatuses[tenantID], status)
			}
		} else {
			status := cellStatus(snap, name, "")
			row[state.PlatformScope] = status
			rowStatuses = append(rowStatuses, status)
			tenantStatuses[state.PlatformScope] = append(tenantStatuses[state.PlatformScope], status)
		}
		cells[name] = row
		serviceRoll[name] = evaluate.Aggregate(rowStatuses)
	}

	tenantRoll := make(map[string]model.HealthStatus, len(columns))
	for _, col := range columns {
		tenantRoll[col] = evaluate.Aggregate(tenantStatuses[col])
	}

	return &model.HealthMatrix{
		Services:    services,
		Tenants:     columns,
		Cells:       cells,
		ServiceRoll: serviceRoll,
		TenantRoll:  tenantRoll,
		GeneratedAt: b.now().UTC(),
	}, nil
}

// PlatformStatus reduces the whole snapshot to one status per tier and one
// overall status.
func (b *Builder) PlatformStatus(ctx context.Context) (model.HealthStatus, map[model.ServiceTier]model.HealthStatus, error) {
	snap, err := b.state.Snapshot(ctx)
	if err != nil {
		return model.StatusUnknown, nil, fmt.Errorf("load cache snapshot: %w", err)
	}
	byTier := map[model.ServiceTier][]model.HealthStatus{}
	var all []model.HealthStatus
	for _, rec := range snap {
		byTier[rec.Tier] = append(byTier[rec.Tier], rec.Status)
		all = append(all, rec.Status)
	}
	tiers := make(map[model.ServiceTier]model.HealthStatus, len(model.Tiers))
	for _, tier := range model.Tiers {
		tiers[tier] = evaluate.Aggregate(byTier[tier])
	}
	return evaluate.Aggregate(all), tiers, nil
}

func (b *Builder) snapshotByKey(ctx context.Context) (map[string]model.HealthCheckRecord, error) {
	snap, err := b.state.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache snapshot: %w", err)
	}
	byKey := make(map[string]model.HealthCheckRecord, len(snap))
	for _, rec := range snap {
		byKey[rec.Service+":"+state.Scope(rec.TenantID)] = rec
	}
	return byKey, nil
}

func cellStatus(snap map[string]model.HealthCheckRecord, service, tenantID string) model.HealthStatus {
	if rec, ok := snap[service+":"+state.Scope(tenantID)]; ok {
		return rec.Status
	}
	return model.StatusUnknown
}
