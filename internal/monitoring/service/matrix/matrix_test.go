package matrix

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftport/opsmon/internal/monitoring/model"
	"github.com/craftport/opsmon/internal/monitoring/service/registry"
	"github.com/craftport/opsmon/internal/monitoring/service/state"
)

func noopProbe() registry.Probe {
	return registry.ProbeFunc(func(context.Context, string) model.CheckResult {
		return model.CheckResult{Status: model.StatusHealthy}
	})
}

func testBuilder(t *testing.T) (*Builder, *state.MemoryStore) {
	t.Helper()
	reg, err := registry.New([]registry.Monitor{
		{Name: "postgres", Tier: model.TierCritical, Probe: noopProbe()},
		{Name: "storefront", Tier: model.TierCore, RequiresTenant: true, Probe: noopProbe()},
		{Name: "payments", Tier: model.TierIntegrations, RequiresTenant: true, Probe: noopProbe()},
	})
	require.NoError(t, err)
	st := state.NewMemoryStore(time.Hour)
	return NewBuilder(reg, st), st
}

func cache(t *testing.T, st *state.MemoryStore, service, tenantID string, tier model.ServiceTier, status model.HealthStatus, latency int64) {
	t.Helper()
	require.NoError(t, st.CacheResult(context.Background(), model.HealthCheckRecord{
		Service:   service,
		TenantID:  tenantID,
		Tier:      tier,
		Status:    status,
		LatencyMs: latency,
		CheckedAt: time.Now().UTC(),
	}))
}

func TestMatrixDefaultsToUnknown(t *testing.T) {
	b, _ := testBuilder(t)

	m, err := b.Matrix(context.Background(), []string{"t1", "t2"})
	require.NoError(t, err)

	// nothing cached yet: every cell present and unknown
	assert.Equal(t, model.StatusUnknown, m.Cells["postgres"][state.PlatformScope])
	assert.Equal(t, model.StatusUnknown, m.Cells["storefront"]["t1"])
	assert.Equal(t, model.StatusUnknown, m.Cells["payments"]["t2"])
	assert.Equal(t, model.StatusUnknown, m.ServiceRoll["storefront"])
	assert.Equal(t, model.StatusUnknown, m.TenantRoll["t1"])
}

func TestMatrixRollups(t *testing.T) {
	b, st := testBuilder(t)
	ctx := context.Background()

	cache(t, st, "postgres", "", model.TierCritical, model.StatusHealthy, 5)
	cache(t, st, "storefront", "t1", model.TierCore, model.StatusUnhealthy, 800)
	cache(t, st, "storefront", "t2", model.TierCore, model.StatusHealthy, 40)
	cache(t, st, "payments", "t1", model.TierIntegrations, model.StatusHealthy, 90)
	cache(t, st, "payments", "t2", model.TierIntegrations, model.StatusDegraded, 400)

	m, err := b.Matrix(ctx, []string{"t1", "t2"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnhealthy, m.Cells["storefront"]["t1"])
	assert.Equal(t, model.StatusUnhealthy, m.ServiceRoll["storefront"], "row rollup is worst of row")
	assert.Equal(t, model.StatusUnhealthy, m.TenantRoll["t1"], "column rollup is worst of column")
	assert.Equal(t, model.StatusDegraded, m.TenantRoll["t2"])
	assert.Equal(t, model.StatusHealthy, m.TenantRoll[state.PlatformScope])
	assert.Equal(t, []string{state.PlatformScope, "t1", "t2"}, m.Tenants)
}

func TestTenantSummaries(t *testing.T) {
	b, st := testBuilder(t)

	cache(t, st, "storefront", "t1", model.TierCore, model.StatusDegraded, 300)
	cache(t, st, "payments", "t1", model.TierIntegrations, model.StatusHealthy, 50)
	cache(t, st, "storefront", "t2", model.TierCore, model.StatusHealthy, 30)
	cache(t, st, "payments", "t2", model.TierIntegrations, model.StatusHealthy, 45)

	sums, err := b.TenantSummaries(context.Background(), []string{"t1", "t2", "t3"})
	require.NoError(t, err)
	require.Len(t, sums, 3)

	assert.Equal(t, model.StatusDegraded, sums[0].Status)
	assert.Equal(t, []string{"storefront"}, sums[0].FailingServices)
	assert.Equal(t, model.StatusHealthy, sums[1].Status)
	assert.Empty(t, sums[1].FailingServices)
	// t3 has no cached records at all: unknown, not healthy
	assert.Equal(t, model.StatusUnknown, sums[2].Status)
}

func TestServiceSummaries(t *testing.T) {
	b, st := testBuilder(t)

	cache(t, st, "payments", "t1", model.TierIntegrations, model.StatusUnhealthy, 900)
	cache(t, st, "payments", "t2", model.TierIntegrations, model.StatusHealthy, 100)

	sums, err := b.ServiceSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 3, "one summary per registered service")

	byName := map[string]model.ServiceSummary{}
	for _, s := range sums {
		byName[s.Service] = s
	}
	payments := byName["payments"]
	assert.Equal(t, model.StatusUnhealthy, payments.Status)
	assert.Equal(t, int64(500), payments.AvgLatencyMs)
	assert.Equal(t, []string{"t1"}, payments.FailingTenants)

	// a service with no cached cells reads unknown
	assert.Equal(t, model.StatusUnknown, byName["postgres"].Status)
}

func TestPlatformStatus(t *testing.T) {
	b, st := testBuilder(t)
	ctx := context.Background()

	overall, tiers, err := b.PlatformStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, overall, "empty snapshot is unknown")
	assert.Equal(t, model.StatusUnknown, tiers[model.TierCritical])

	cache(t, st, "postgres", "", model.TierCritical, model.StatusHealthy, 5)
	cache(t, st, "storefront", "t1", model.TierCore, model.StatusDegraded, 400)

	overall, tiers, err = b.PlatformStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDegraded, overall)
	assert.Equal(t, model.StatusHealthy, tiers[model.TierCritical])
	assert.Equal(t, model.StatusDegraded, tiers[model.TierCore])
	assert.Equal(t, model.StatusUnknown, tiers[model.TierExternal])
}
