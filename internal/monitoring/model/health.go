package model

import "time"

// HealthStatus is the classified state of one service check.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// statusRank orders statuses for worst-wins aggregation.
// unknown sits between healthy and degraded: an unreported service is
// worse than a healthy one but not yet evidence of degradation.
var statusRank = map[HealthStatus]int{
	StatusHealthy:   0,
	StatusUnknown:   1,
	StatusDegraded:  2,
	StatusUnhealthy: 3,
}

// Rank returns the aggregation precedence of s. Unrecognized values rank as unknown.
func (s HealthStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return statusRank[StatusUnknown]
}

// ServiceTier groups monitors by polling cadence.
type ServiceTier string

const (
	TierCritical     ServiceTier = "critical"
	TierCore         ServiceTier = "core"
	TierIntegrations ServiceTier = "integrations"
	TierExternal     ServiceTier = "external"
)

// Tiers lists all tiers in cadence order, fastest first.
var Tiers = []ServiceTier{TierCritical, TierCore, TierIntegrations, TierExternal}

// Interval returns the fixed polling interval bound to the tier.
func (t ServiceTier) Interval() time.Duration {
	switch t {
	case TierCritical:
		return time.Minute
	case TierCore:
		return 5 * time.Minute
	case TierIntegrations:
		return 15 * time.Minute
	case TierExternal:
		return 30 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// CheckResult is the transient output of a single probe invocation.
type CheckResult struct {
	Status    HealthStatus   `json:"status"`
	LatencyMs int64          `json:"latencyMs"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// HealthCheckRecord wraps a CheckResult with its identity and failure streak
// before caching and history persistence.
type HealthCheckRecord struct {
	Service             string         `json:"service"`
	TenantID            string         `json:"tenantId,omitempty"`
	Tier                ServiceTier    `json:"tier"`
	Status              HealthStatus   `json:"status"`
	LatencyMs           int64          `json:"latencyMs"`
	Details             map[string]any `json:"details,omitempty"`
	Error               string         `json:"error,omitempty"`
	CheckedAt           time.Time      `json:"checkedAt"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
}

// ThresholdConfig holds per-metric warning/critical bounds supplied by callers.
type ThresholdConfig struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// TenantSummary is the per-tenant rollup of all applicable monitors.
type TenantSummary struct {
	TenantID        string       `json:"tenantId"`
	Status          HealthStatus `json:"status"`
	ServicesChecked int          `json:"servicesChecked"`
	FailingServices []string     `json:"failingServices"`
}

// ServiceSummary is the per-service rollup across tenants.
type ServiceSummary struct {
	Service        string       `json:"service"`
	Tier           ServiceTier  `json:"tier"`
	Status         HealthStatus `json:"status"`
	AvgLatencyMs   int64        `json:"avgLatencyMs"`
	FailingTenants []string     `json:"failingTenants"`
}

// HealthMatrix is the raw service x tenant grid of current cached statuses.
// Cells holds per-service rows keyed by tenant id ("platform" for
// platform-wide monitors); uninitialized cells default to unknown.
type HealthMatrix struct {
	Services    []string                           `json:"services"`
	Tenants     []string                           `json:"tenants"`
	Cells       map[string]map[string]HealthStatus `json:"cells"`
	ServiceRoll map[string]HealthStatus            `json:"serviceRollup"`
	TenantRoll  map[string]HealthStatus            `json:"tenantRollup"`
	GeneratedAt time.Time                          `json:"generatedAt"`
}

// TenantReport is the result of an on-demand single-tenant run.
type TenantReport struct {
	TenantID string              `json:"tenantId"`
	Status   HealthStatus        `json:"status"`
	Checks   []HealthCheckRecord `json:"checks"`
	RanAt    time.Time           `json:"ranAt"`
}
