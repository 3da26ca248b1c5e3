package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/craftport/opsmon/internal/monitoring/metrics"
	"github.com/craftport/opsmon/internal/monitoring/model"
)

// AlertStore is the persistence surface the dispatcher needs. The Postgres
// implementation lives in internal/monitoring/database.
type AlertStore interface {
	CreateAlert(ctx context.Context, a *model.Alert) error
	UpdateDeliveryStatus(ctx context.Context, id string, delivery map[model.ChannelType]model.DeliveryState) error
}

// Dispatcher creates alert records on escalation and fans them out to every
// enabled channel whose severity filter matches.
type Dispatcher struct {
	store       AlertStore
	provider    ChannelConfigProvider
	senders     map[model.ChannelType]Sender
	sendTimeout time.Duration
}

func NewDispatcher(store AlertStore, provider ChannelConfigProvider, httpClient *http.Client, sendTimeout time.Duration) *Dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &Dispatcher{
		store:    store,
		provider: provider,
		senders: map[model.ChannelType]Sender{
			model.ChannelDashboard: dashboardSender{},
			model.ChannelEmail:     emailSender{},
			model.ChannelSlack:     slackSender{client: httpClient},
			model.ChannelPagerDuty: pagerdutySender{client: httpClient},
			model.ChannelWebhook:   webhookSender{client: httpClient},
		},
		sendTimeout: sendTimeout,
	}
}

// WithSender replaces one channel sender. Used in tests.
func (d *Dispatcher) WithSender(t model.ChannelType, s Sender) *Dispatcher {
	d.senders[t] = s
	return d
}

// Escalate builds and persists an alert for a failure streak crossing the
// escalation threshold, then dispatches it. The alert write is a hard
// failure: losing it would break the audit trail.
func (d *Dispatcher) Escalate(ctx context.Context, rec model.HealthCheckRecord) (*model.Alert, error) {
	alert := BuildAlert(rec)
	if err := d.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}
	metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Severity)).Inc()
	log.Warn().
		Str("alert_id", alert.ID).
		Str("service", alert.Service).
		Str("tenant", alert.TenantID).
		Str("severity", string(alert.Severity)).
		Int("failures", rec.ConsecutiveFailures).
		Msg("failure streak crossed escalation threshold")

	d.DispatchAlert(ctx, alert)
	return alert, nil
}

// BuildAlert maps a failing check record to a new open alert.
func BuildAlert(rec model.HealthCheckRecord) *model.Alert {
	severity := model.SeverityP1
	if rec.Status == model.StatusDegraded {
		severity = model.SeverityP2
	}
	title := fmt.Sprintf("%s health check failing", rec.Service)
	message := fmt.Sprintf("%s has failed %d consecutive health checks", rec.Service, rec.ConsecutiveFailures)
	if rec.TenantID != "" {
		message = fmt.Sprintf("%s for tenant %s", message, rec.TenantID)
	}
	if rec.Error != "" {
		message = fmt.Sprintf("%s. Last error: %s", message, rec.Error)
	}
	return &model.Alert{
		ID:       uuid.NewString(),
		Severity: severity,
		Source:   "health-monitor",
		Service:  rec.Service,
		TenantID: rec.TenantID,
		Title:    title,
		Message:  message,
		Metadata: map[string]any{
			"tier":                 string(rec.Tier),
			"consecutive_failures": rec.ConsecutiveFailures,
			"latency_ms":           rec.LatencyMs,
		},
		Status:         model.AlertOpen,
		CreatedAt:      time.Now().UTC(),
		DeliveryStatus: map[model.ChannelType]model.DeliveryState{},
	}
}

// DispatchAlert sends the alert to every enabled, severity-matching channel
// concurrently and persists the per-channel outcome. One channel failing
// never prevents the others from being attempted.
func (d *Dispatcher) DispatchAlert(ctx context.Context, alert *model.Alert) map[model.ChannelType]model.DeliveryState {
	channels, err := d.provider.Channels()
	if err != nil {
		log.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to load channel configuration")
		return nil
	}

	delivery := make(map[model.ChannelType]model.DeliveryState)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ch := range channels {
		if !ch.Enabled || !ch.Accepts(alert.Severity) {
			continue
		}
		sender, ok := d.senders[ch.Type]
		if !ok {
			log.Warn().Str("channel", string(ch.Type)).Msg("no sender for channel type")
			continue
		}
		mu.Lock()
		delivery[ch.Type] = model.DeliveryPending
		mu.Unlock()

		wg.Add(1)
		go func(ch model.AlertChannel, sender Sender) {
			defer wg.Done()
			state := d.sendOne(ctx, sender, alert, ch)
			mu.Lock()
			delivery[ch.Type] = state
			mu.Unlock()
		}(ch, sender)
	}
	wg.Wait()

	alert.DeliveryStatus = delivery
	if err := d.store.UpdateDeliveryStatus(ctx, alert.ID, delivery); err != nil {
		log.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to persist delivery status")
	}
	return delivery
}

// sendOne runs a single channel send with its own timeout and panic guard,
// so a misbehaving transport is reduced to a failed delivery entry.
func (d *Dispatcher) sendOne(ctx context.Context, sender Sender, alert *model.Alert, ch model.AlertChannel) (state model.DeliveryState) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("channel", string(ch.Type)).Str("alert_id", alert.ID).Msg("channel sender panicked")
			state = model.DeliveryFailed
			metrics.ChannelDeliveriesTotal.WithLabelValues(string(ch.Type), "failed").Inc()
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := sender.Send(sctx, alert, ch); err != nil {
		log.Error().Err(err).Str("channel", string(ch.Type)).Str("alert_id", alert.ID).Msg("channel delivery failed")
		metrics.ChannelDeliveriesTotal.WithLabelValues(string(ch.Type), "failed").Inc()
		return model.DeliveryFailed
	}
	log.Info().Str("channel", string(ch.Type)).Str("alert_id", alert.ID).Msg("alert delivered")
	metrics.ChannelDeliveriesTotal.WithLabelValues(string(ch.Type), "sent").Inc()
	return model.DeliverySent
}
