package state

import (
	"context"
	"time"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// PlatformScope is the tenant key used for platform-wide checks.
const PlatformScope = "platform"

// Store holds the shared mutable state of the check pipeline: last-run
// bookkeeping, consecutive-failure counters, and the short-TTL cache of the
// most recent result per (service, tenant). Counter increment and reset are
// atomic per key; cross-process linearizability is not required, the
// escalation threshold absorbs small races.
type Store interface {
	// GetLastRun returns the recorded last-run time for a service. The
	// second return is false when the service has never run.
	GetLastRun(ctx context.Context, service string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, service string, at time.Time) error

	GetFailures(ctx context.Context, service, tenantID string) (int, error)
	// IncrFailures atomically increments and returns the new count.
	IncrFailures(ctx context.Context, service, tenantID string) (int, error)
	ResetFailures(ctx context.Context, service, tenantID string) error

	// CacheResult stores the most recent record for its (service, tenant)
	// key with a short TTL so read-side queries never re-run probes.
	CacheResult(ctx context.Context, rec model.HealthCheckRecord) error
	GetResult(ctx context.Context, service, tenantID string) (model.HealthCheckRecord, bool, error)

	// Snapshot returns every currently cached record. Used by the
	// aggregator; expired or unreadable entries are simply omitted.
	Snapshot(ctx context.Context) ([]model.HealthCheckRecord, error)
}

// Scope normalizes an optional tenant id to a cache key segment.
func Scope(tenantID string) string {
	if tenantID == "" {
		return PlatformScope
	}
	return tenantID
}
