package evaluate

import (
	"testing"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

func TestEvaluateBoundaries(t *testing.T) {
	th := model.ThresholdConfig{Warning: 70, Critical: 90}
	tests := []struct {
		name  string
		value float64
		want  Verdict
	}{
		{"below warning", 69, VerdictHealthy},
		{"at warning", 70, VerdictWarning},
		{"between", 89, VerdictWarning},
		{"at critical", 90, VerdictCritical},
		{"above critical", 120, VerdictCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.value, th); got != tt.want {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestEvaluateInverse(t *testing.T) {
	th := model.ThresholdConfig{Warning: 20, Critical: 5}
	tests := []struct {
		name  string
		value float64
		want  Verdict
	}{
		{"plenty", 80, VerdictHealthy},
		{"at warning", 20, VerdictWarning},
		{"at critical", 5, VerdictCritical},
		{"below critical", 1, VerdictCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateInverse(tt.value, th); got != tt.want {
				t.Errorf("EvaluateInverse(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestEvaluateLatency(t *testing.T) {
	if got := EvaluateLatency(50, 100, 500); got != model.StatusHealthy {
		t.Errorf("50ms = %v, want healthy", got)
	}
	if got := EvaluateLatency(100, 100, 500); got != model.StatusDegraded {
		t.Errorf("100ms = %v, want degraded", got)
	}
	if got := EvaluateLatency(499, 100, 500); got != model.StatusDegraded {
		t.Errorf("499ms = %v, want degraded", got)
	}
	if got := EvaluateLatency(500, 100, 500); got != model.StatusUnhealthy {
		t.Errorf("500ms = %v, want unhealthy", got)
	}
	// zero maxima fall back to the 100/500 defaults
	if got := EvaluateLatency(50, 0, 0); got != model.StatusHealthy {
		t.Errorf("50ms with defaults = %v, want healthy", got)
	}
}

func TestVerdictMappings(t *testing.T) {
	if ToHealthStatus(VerdictHealthy) != model.StatusHealthy ||
		ToHealthStatus(VerdictWarning) != model.StatusDegraded ||
		ToHealthStatus(VerdictCritical) != model.StatusUnhealthy {
		t.Fatal("verdict to status mapping broken")
	}
	if sev, ok := ToSeverity(VerdictCritical); !ok || sev != model.SeverityP1 {
		t.Fatalf("critical severity = %v/%v", sev, ok)
	}
	if sev, ok := ToSeverity(VerdictWarning); !ok || sev != model.SeverityP2 {
		t.Fatalf("warning severity = %v/%v", sev, ok)
	}
	if _, ok := ToSeverity(VerdictHealthy); ok {
		t.Fatal("healthy verdict should not warrant an alert")
	}
	if ShouldAlert(VerdictHealthy) || !ShouldAlert(VerdictWarning) || !ShouldAlert(VerdictCritical) {
		t.Fatal("ShouldAlert mapping broken")
	}
}

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); got != model.StatusUnknown {
		t.Fatalf("Aggregate(nil) = %v, want unknown", got)
	}
	if got := Aggregate([]model.HealthStatus{}); got != model.StatusUnknown {
		t.Fatalf("Aggregate([]) = %v, want unknown", got)
	}
}

func TestAggregateWorstWins(t *testing.T) {
	h, d, u, k := model.StatusHealthy, model.StatusDegraded, model.StatusUnhealthy, model.StatusUnknown
	tests := []struct {
		name string
		in   []model.HealthStatus
		want model.HealthStatus
	}{
		{"all healthy", []model.HealthStatus{h, h, h}, h},
		{"unhealthy dominates", []model.HealthStatus{h, d, u, k}, u},
		{"degraded over unknown", []model.HealthStatus{h, k, d}, d},
		{"unknown over healthy", []model.HealthStatus{h, k, h}, k},
		{"single unhealthy", []model.HealthStatus{u}, u},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.in); got != tt.want {
				t.Errorf("Aggregate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAggregateCommutativeIdempotent(t *testing.T) {
	vals := []model.HealthStatus{model.StatusHealthy, model.StatusDegraded, model.StatusUnhealthy, model.StatusUnknown}
	for _, a := range vals {
		if Aggregate([]model.HealthStatus{a, a}) != Aggregate([]model.HealthStatus{a}) {
			t.Errorf("duplication changed result for %v", a)
		}
		for _, b := range vals {
			x := Aggregate([]model.HealthStatus{a, b})
			y := Aggregate([]model.HealthStatus{b, a})
			if x != y {
				t.Errorf("order changed result: %v,%v -> %v vs %v", a, b, x, y)
			}
		}
	}
}
