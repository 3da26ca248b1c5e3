package model

import "time"

// AlertSeverity ranks an alert for routing and display.
type AlertSeverity string

const (
	SeverityP1 AlertSeverity = "p1"
	SeverityP2 AlertSeverity = "p2"
	SeverityP3 AlertSeverity = "p3"
)

// AlertStatus is the lifecycle state of a persisted alert.
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// ChannelType identifies an alert delivery destination.
type ChannelType string

const (
	ChannelDashboard ChannelType = "dashboard"
	ChannelEmail     ChannelType = "email"
	ChannelSlack     ChannelType = "slack"
	ChannelPagerDuty ChannelType = "pagerduty"
	ChannelWebhook   ChannelType = "webhook"
)

// DeliveryState records the outcome of one channel send.
type DeliveryState string

const (
	DeliveryPending DeliveryState = "pending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)

// Alert is a persisted escalation record. Alerts are never deleted; they
// are mutated only by acknowledge/resolve transitions and delivery updates.
type Alert struct {
	ID             string                        `json:"id"`
	Severity       AlertSeverity                 `json:"severity"`
	Source         string                        `json:"source"`
	Service        string                        `json:"service"`
	TenantID       string                        `json:"tenantId,omitempty"`
	Metric         string                        `json:"metric,omitempty"`
	CurrentValue   float64                       `json:"currentValue,omitempty"`
	ThresholdValue float64                       `json:"thresholdValue,omitempty"`
	Title          string                        `json:"title"`
	Message        string                        `json:"message"`
	Metadata       map[string]any                `json:"metadata,omitempty"`
	Status         AlertStatus                   `json:"status"`
	CreatedAt      time.Time                     `json:"createdAt"`
	AcknowledgedAt *time.Time                    `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string                        `json:"acknowledgedBy,omitempty"`
	ResolvedAt     *time.Time                    `json:"resolvedAt,omitempty"`
	ResolvedBy     string                        `json:"resolvedBy,omitempty"`
	ResolveNotes   string                        `json:"resolveNotes,omitempty"`
	DeliveryStatus map[ChannelType]DeliveryState `json:"deliveryStatus,omitempty"`
}

// AlertChannel is a configuration value object describing one destination.
// Channels are recomputed from configuration at each dispatch, never persisted.
type AlertChannel struct {
	Type       ChannelType       `json:"type" yaml:"type"`
	Enabled    bool              `json:"enabled" yaml:"enabled"`
	Config     map[string]string `json:"config" yaml:"config"`
	Severities []AlertSeverity   `json:"severities" yaml:"severities"`
}

// Accepts reports whether the channel's severity filter matches s.
// An empty filter accepts every severity.
func (c AlertChannel) Accepts(s AlertSeverity) bool {
	if len(c.Severities) == 0 {
		return true
	}
	for _, v := range c.Severities {
		if v == s {
			return true
		}
	}
	return false
}
