package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// Probe performs one service-specific health test. Implementations must
// enforce their own timeout and return a classified result rather than
// panicking; the scheduler still guards against misbehaving probes.
type Probe interface {
	Check(ctx context.Context, tenantID string) model.CheckResult
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc func(ctx context.Context, tenantID string) model.CheckResult

func (f ProbeFunc) Check(ctx context.Context, tenantID string) model.CheckResult {
	return f(ctx, tenantID)
}

// Monitor is an immutable registration binding a service name to its probe,
// scheduling tier, and tenant scoping.
type Monitor struct {
	Name           string
	Tier           model.ServiceTier
	RequiresTenant bool
	Probe          Probe
}

// Registry is the static monitor catalog, built once at process start.
// There is no runtime mutation API; registration is a deployment concern.
type Registry struct {
	byName map[string]Monitor
	names  []string
}

// New builds a registry from a fixed monitor list. Duplicate or unnamed
// monitors are rejected so a bad table fails fast at startup.
func New(monitors []Monitor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Monitor, len(monitors))}
	for _, m := range monitors {
		if m.Name == "" {
			return nil, fmt.Errorf("monitor with empty name")
		}
		if m.Probe == nil {
			return nil, fmt.Errorf("monitor %s has no probe", m.Name)
		}
		if _, dup := r.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate monitor name: %s", m.Name)
		}
		r.byName[m.Name] = m
		r.names = append(r.names, m.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the monitor registered under name.
func (r *Registry) Get(name string) (Monitor, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names lists all registered service names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// ListByTier returns every monitor in the given tier.
func (r *Registry) ListByTier(tier model.ServiceTier) []Monitor {
	return r.filter(func(m Monitor) bool { return m.Tier == tier })
}

// ListPlatform returns monitors that run once platform-wide.
func (r *Registry) ListPlatform() []Monitor {
	return r.filter(func(m Monitor) bool { return !m.RequiresTenant })
}

// ListTenantScoped returns monitors that run once per active tenant.
func (r *Registry) ListTenantScoped() []Monitor {
	return r.filter(func(m Monitor) bool { return m.RequiresTenant })
}

// Representative returns one stable service name for the tier, used by the
// scheduler as the tier's last-run bookkeeping key.
func (r *Registry) Representative(tier model.ServiceTier) (string, bool) {
	for _, name := range r.names {
		if r.byName[name].Tier == tier {
			return name, true
		}
	}
	return "", false
}

func (r *Registry) filter(keep func(Monitor) bool) []Monitor {
	var out []Monitor
	for _, name := range r.names {
		if m := r.byName[name]; keep(m) {
			out = append(out, m)
		}
	}
	return out
}
