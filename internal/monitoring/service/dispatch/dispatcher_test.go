package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

type memAlertStore struct {
	mu       sync.Mutex
	alerts   map[string]*model.Alert
	delivery map[string]map[model.ChannelType]model.DeliveryState
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{
		alerts:   map[string]*model.Alert{},
		delivery: map[string]map[model.ChannelType]model.DeliveryState{},
	}
}

func (m *memAlertStore) CreateAlert(_ context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a
	return nil
}

func (m *memAlertStore) UpdateDeliveryStatus(_ context.Context, id string, d map[model.ChannelType]model.DeliveryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivery[id] = d
	return nil
}

type stubSender struct {
	mu    sync.Mutex
	err   error
	panic bool
	sent  int
}

func (s *stubSender) Send(context.Context, *model.Alert, model.AlertChannel) error {
	if s.panic {
		panic("transport exploded")
	}
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
	return s.err
}

func testChannels() []model.AlertChannel {
	return []model.AlertChannel{
		{Type: model.ChannelDashboard, Enabled: true},
		{Type: model.ChannelSlack, Enabled: true, Config: map[string]string{"webhook_url": "http://example.invalid"}},
		{Type: model.ChannelWebhook, Enabled: true, Config: map[string]string{"url": "http://example.invalid"}},
	}
}

func TestDispatchIsolatesChannelFailures(t *testing.T) {
	store := newMemAlertStore()
	d := NewDispatcher(store, StaticProvider(testChannels()), nil, time.Second)
	failing := &stubSender{err: errors.New("boom")}
	ok := &stubSender{}
	d.WithSender(model.ChannelSlack, failing).WithSender(model.ChannelWebhook, ok)

	alert := BuildAlert(model.HealthCheckRecord{Service: "payments", Status: model.StatusUnhealthy, ConsecutiveFailures: 3})
	delivery := d.DispatchAlert(context.Background(), alert)

	assert.Equal(t, model.DeliverySent, delivery[model.ChannelDashboard])
	assert.Equal(t, model.DeliveryFailed, delivery[model.ChannelSlack])
	assert.Equal(t, model.DeliverySent, delivery[model.ChannelWebhook])
	assert.Equal(t, delivery, store.delivery[alert.ID], "delivery map must be persisted")
}

func TestDispatchSurvivesPanickingSender(t *testing.T) {
	store := newMemAlertStore()
	d := NewDispatcher(store, StaticProvider(testChannels()), nil, time.Second)
	d.WithSender(model.ChannelSlack, &stubSender{panic: true})
	d.WithSender(model.ChannelWebhook, &stubSender{})

	alert := BuildAlert(model.HealthCheckRecord{Service: "payments", Status: model.StatusUnhealthy, ConsecutiveFailures: 3})
	delivery := d.DispatchAlert(context.Background(), alert)

	assert.Equal(t, model.DeliveryFailed, delivery[model.ChannelSlack])
	assert.Equal(t, model.DeliverySent, delivery[model.ChannelWebhook])
}

func TestDispatchHonorsSeverityFilterAndEnabled(t *testing.T) {
	store := newMemAlertStore()
	channels := []model.AlertChannel{
		{Type: model.ChannelDashboard, Enabled: true},
		{Type: model.ChannelSlack, Enabled: true, Severities: []model.AlertSeverity{model.SeverityP1}},
		{Type: model.ChannelWebhook, Enabled: false},
	}
	d := NewDispatcher(store, StaticProvider(channels), nil, time.Second)
	slack := &stubSender{}
	webhook := &stubSender{}
	d.WithSender(model.ChannelSlack, slack).WithSender(model.ChannelWebhook, webhook)

	p2 := BuildAlert(model.HealthCheckRecord{Service: "search", Status: model.StatusDegraded, ConsecutiveFailures: 3})
	require.Equal(t, model.SeverityP2, p2.Severity)
	delivery := d.DispatchAlert(context.Background(), p2)

	assert.Equal(t, model.DeliverySent, delivery[model.ChannelDashboard])
	_, slackAttempted := delivery[model.ChannelSlack]
	assert.False(t, slackAttempted, "p1-only channel must not see a p2 alert")
	_, webhookAttempted := delivery[model.ChannelWebhook]
	assert.False(t, webhookAttempted, "disabled channel must not be attempted")
	assert.Equal(t, 0, slack.sent)
	assert.Equal(t, 0, webhook.sent)
}

func TestEscalatePersistsAlert(t *testing.T) {
	store := newMemAlertStore()
	d := NewDispatcher(store, StaticProvider([]model.AlertChannel{{Type: model.ChannelDashboard, Enabled: true}}), nil, time.Second)

	rec := model.HealthCheckRecord{
		Service:             "payments",
		TenantID:            "tenant-a",
		Tier:                model.TierIntegrations,
		Status:              model.StatusUnhealthy,
		Error:               "connection refused",
		ConsecutiveFailures: 3,
	}
	alert, err := d.Escalate(context.Background(), rec)
	require.NoError(t, err)
	require.NotNil(t, alert)

	stored := store.alerts[alert.ID]
	require.NotNil(t, stored)
	assert.Equal(t, model.SeverityP1, stored.Severity)
	assert.Equal(t, model.AlertOpen, stored.Status)
	assert.Equal(t, "tenant-a", stored.TenantID)
	assert.Contains(t, stored.Message, "3 consecutive")
	assert.Contains(t, stored.Message, "connection refused")
}

func TestBuildAlertSeverityFollowsStatus(t *testing.T) {
	p1 := BuildAlert(model.HealthCheckRecord{Service: "db", Status: model.StatusUnhealthy, ConsecutiveFailures: 3})
	assert.Equal(t, model.SeverityP1, p1.Severity)
	p2 := BuildAlert(model.HealthCheckRecord{Service: "db", Status: model.StatusDegraded, ConsecutiveFailures: 3})
	assert.Equal(t, model.SeverityP2, p2.Severity)
}

func TestDedupKey(t *testing.T) {
	a := &model.Alert{Service: "payments", TenantID: "t1", Metric: "latency_p95"}
	assert.Equal(t, "payments-t1-latency_p95", DedupKey(a))
	b := &model.Alert{Service: "payments"}
	assert.Equal(t, "payments----", DedupKey(b))
}
