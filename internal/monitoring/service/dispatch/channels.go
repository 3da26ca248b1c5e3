package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// Sender delivers one alert to one channel type. Implementations must treat
// every failure as an error return; the dispatcher records it per channel
// and never lets it propagate to sibling sends.
type Sender interface {
	Send(ctx context.Context, alert *model.Alert, ch model.AlertChannel) error
}

const pagerdutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// dashboardSender has no external call: the alert row in the store is the
// delivery.
type dashboardSender struct{}

func (dashboardSender) Send(context.Context, *model.Alert, model.AlertChannel) error { return nil }

type slackSender struct {
	client *http.Client
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s slackSender) Send(ctx context.Context, a *model.Alert, ch model.AlertChannel) error {
	webhookURL := ch.Config["webhook_url"]
	if webhookURL == "" {
		return fmt.Errorf("slack channel missing webhook_url")
	}
	fields := []slackField{{Title: "Service", Value: a.Service, Short: true}}
	if a.TenantID != "" {
		fields = append(fields, slackField{Title: "Tenant", Value: a.TenantID, Short: true})
	}
	if a.Metric != "" {
		fields = append(fields, slackField{Title: "Metric", Value: a.Metric, Short: true})
		fields = append(fields, slackField{Title: "Value", Value: fmt.Sprintf("%g (threshold %g)", a.CurrentValue, a.ThresholdValue), Short: true})
	}
	payload := map[string]any{
		"attachments": []slackAttachment{{
			Color:  slackColor(a.Severity),
			Title:  fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Title),
			Text:   a.Message,
			Fields: fields,
			Footer: "opsmon",
			Ts:     a.CreatedAt.Unix(),
		}},
	}
	return postJSON(ctx, s.client, webhookURL, payload, nil)
}

func slackColor(sev model.AlertSeverity) string {
	switch sev {
	case model.SeverityP1:
		return "#d00000"
	case model.SeverityP2:
		return "#f2811d"
	default:
		return "#439fe0"
	}
}

type pagerdutySender struct {
	client *http.Client
}

func (s pagerdutySender) Send(ctx context.Context, a *model.Alert, ch model.AlertChannel) error {
	routingKey := ch.Config["routing_key"]
	if routingKey == "" {
		return fmt.Errorf("pagerduty channel missing routing_key")
	}
	endpoint := ch.Config["url"]
	if endpoint == "" {
		endpoint = pagerdutyEventsURL
	}
	payload := map[string]any{
		"routing_key":  routingKey,
		"event_action": "trigger",
		"dedup_key":    DedupKey(a),
		"payload": map[string]any{
			"summary":  a.Title,
			"source":   a.Service,
			"severity": pagerdutySeverity(a.Severity),
			"custom_details": map[string]any{
				"message":   a.Message,
				"tenant_id": a.TenantID,
				"metric":    a.Metric,
				"value":     a.CurrentValue,
				"threshold": a.ThresholdValue,
			},
		},
	}
	return postJSON(ctx, s.client, endpoint, payload, nil)
}

// DedupKey derives the PagerDuty deduplication key so repeated triggers for
// the same underlying condition collapse at the receiver.
func DedupKey(a *model.Alert) string {
	parts := []string{a.Service, a.TenantID, a.Metric}
	for i, p := range parts {
		if p == "" {
			parts[i] = "-"
		}
	}
	return strings.Join(parts, "-")
}

func pagerdutySeverity(sev model.AlertSeverity) string {
	if sev == model.SeverityP1 {
		return "critical"
	}
	return "warning"
}

type webhookSender struct {
	client *http.Client
}

func (s webhookSender) Send(ctx context.Context, a *model.Alert, ch model.AlertChannel) error {
	endpoint := ch.Config["url"]
	if endpoint == "" {
		return fmt.Errorf("webhook channel missing url")
	}
	// custom headers come from config keys prefixed header_
	headers := map[string]string{}
	for k, v := range ch.Config {
		if name, ok := strings.CutPrefix(k, "header_"); ok {
			headers[name] = v
		}
	}
	payload := map[string]any{"type": "platform_alert", "alert": a}
	return postJSON(ctx, s.client, endpoint, payload, headers)
}

type emailSender struct{}

func (emailSender) Send(_ context.Context, a *model.Alert, ch model.AlertChannel) error {
	host := ch.Config["host"]
	to := ch.Config["to"]
	if host == "" || to == "" {
		return fmt.Errorf("email channel missing host or to")
	}
	port := 587
	if p, err := strconv.Atoi(ch.Config["port"]); err == nil && p > 0 {
		port = p
	}
	from := ch.Config["from"]
	if from == "" {
		from = ch.Config["username"]
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n\n", a.Message)
	fmt.Fprintf(&body, "Service: %s\n", a.Service)
	if a.TenantID != "" {
		fmt.Fprintf(&body, "Tenant: %s\n", a.TenantID)
	}
	if a.Metric != "" {
		fmt.Fprintf(&body, "Metric: %s (current %g, threshold %g)\n", a.Metric, a.CurrentValue, a.ThresholdValue)
	}
	fmt.Fprintf(&body, "Created: %s\n", a.CreatedAt.UTC().Format(time.RFC3339))

	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", strings.Split(to, ",")...)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Title))
	m.SetBody("text/plain", body.String())

	d := mail.NewDialer(host, port, ch.Config["username"], ch.Config["password"])
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, headers map[string]string) error {
	if client == nil {
		client = http.DefaultClient
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("channel endpoint status %d", resp.StatusCode)
	}
	return nil
}
