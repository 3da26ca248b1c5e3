package evaluate

import "github.com/craftport/opsmon/internal/monitoring/model"

// Verdict is the three-level outcome of a threshold comparison.
type Verdict string

const (
	VerdictHealthy  Verdict = "healthy"
	VerdictWarning  Verdict = "warning"
	VerdictCritical Verdict = "critical"
)

// Evaluate classifies a "higher is worse" metric. Boundaries are inclusive:
// value == critical yields critical, value == warning yields warning.
func Evaluate(value float64, t model.ThresholdConfig) Verdict {
	switch {
	case value >= t.Critical:
		return VerdictCritical
	case value >= t.Warning:
		return VerdictWarning
	default:
		return VerdictHealthy
	}
}

// EvaluateInverse classifies a "lower is worse" metric, e.g. free disk space.
func EvaluateInverse(value float64, t model.ThresholdConfig) Verdict {
	switch {
	case value <= t.Critical:
		return VerdictCritical
	case value <= t.Warning:
		return VerdictWarning
	default:
		return VerdictHealthy
	}
}

// EvaluateLatency maps a probe latency straight to a HealthStatus.
func EvaluateLatency(latencyMs, healthyMax, degradedMax int64) model.HealthStatus {
	if healthyMax <= 0 {
		healthyMax = 100
	}
	if degradedMax <= 0 {
		degradedMax = 500
	}
	switch {
	case latencyMs < healthyMax:
		return model.StatusHealthy
	case latencyMs < degradedMax:
		return model.StatusDegraded
	default:
		return model.StatusUnhealthy
	}
}

// ToHealthStatus maps a verdict to the health status it implies.
func ToHealthStatus(v Verdict) model.HealthStatus {
	switch v {
	case VerdictCritical:
		return model.StatusUnhealthy
	case VerdictWarning:
		return model.StatusDegraded
	case VerdictHealthy:
		return model.StatusHealthy
	default:
		return model.StatusUnknown
	}
}

// ToSeverity maps a verdict to an alert severity. The second return is false
// when the verdict warrants no alert.
func ToSeverity(v Verdict) (model.AlertSeverity, bool) {
	switch v {
	case VerdictCritical:
		return model.SeverityP1, true
	case VerdictWarning:
		return model.SeverityP2, true
	default:
		return "", false
	}
}

// ShouldAlert reports whether the verdict warrants any alert at all.
func ShouldAlert(v Verdict) bool { return v != VerdictHealthy }

// Aggregate reduces a multiset of statuses to the worst one present,
// using precedence unhealthy > degraded > unknown > healthy.
// The empty input aggregates to unknown: absence of evidence is not health.
func Aggregate(statuses []model.HealthStatus) model.HealthStatus {
	if len(statuses) == 0 {
		return model.StatusUnknown
	}
	worst := statuses[0]
	for _, s := range statuses[1:] {
		if s.Rank() > worst.Rank() {
			worst = s
		}
	}
	return worst
}
