package probes

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftport/opsmon/internal/monitoring/database"
	"github.com/craftport/opsmon/internal/monitoring/model"
	"github.com/craftport/opsmon/internal/monitoring/service/evaluate"
	"github.com/craftport/opsmon/internal/monitoring/service/registry"
)

// tenantPlaceholder is substituted with the tenant id in tenant-scoped
// endpoint templates.
const tenantPlaceholder = "{tenant}"

// Postgres probes the primary relational store with a ping.
func Postgres(db *database.Database, timeout time.Duration) registry.Probe {
	return registry.ProbeFunc(func(ctx context.Context, _ string) model.CheckResult {
		if db == nil {
			return model.CheckResult{Status: model.StatusUnknown, Error: "database not configured"}
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		err := db.PingContext(pctx)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			return model.CheckResult{Status: model.StatusUnhealthy, LatencyMs: latency, Error: fmt.Sprintf("ping: %v", err)}
		}
		return model.CheckResult{Status: evaluate.EvaluateLatency(latency, 0, 0), LatencyMs: latency}
	})
}

// Redis probes the cache/state store with a PING.
func Redis(rdb *redis.Client, timeout time.Duration) registry.Probe {
	return registry.ProbeFunc(func(ctx context.Context, _ string) model.CheckResult {
		if rdb == nil {
			return model.CheckResult{Status: model.StatusUnknown, Error: "redis not configured"}
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		err := rdb.Ping(pctx).Err()
		latency := time.Since(start).Milliseconds()
		if err != nil {
			return model.CheckResult{Status: model.StatusUnhealthy, LatencyMs: latency, Error: fmt.Sprintf("ping: %v", err)}
		}
		return model.CheckResult{Status: evaluate.EvaluateLatency(latency, 0, 0), LatencyMs: latency}
	})
}

// HTTPEndpoint probes a platform-wide HTTP endpoint with a GET. A non-2xx
// response or transport error is unhealthy; otherwise latency classifies.
func HTTPEndpoint(client *http.Client, url string, timeout time.Duration) registry.Probe {
	return registry.ProbeFunc(func(ctx context.Context, _ string) model.CheckResult {
		return httpCheck(ctx, client, url, timeout)
	})
}

// TenantHTTPEndpoint probes a per-tenant HTTP endpoint. The template must
// contain a {tenant} placeholder, e.g. https://{tenant}.shops.example.com/up.
func TenantHTTPEndpoint(client *http.Client, template string, timeout time.Duration) registry.Probe {
	return registry.ProbeFunc(func(ctx context.Context, tenantID string) model.CheckResult {
		if tenantID == "" {
			return model.CheckResult{Status: model.StatusUnknown, Error: "tenant-scoped probe invoked without tenant"}
		}
		url := strings.ReplaceAll(template, tenantPlaceholder, tenantID)
		res := httpCheck(ctx, client, url, timeout)
		if res.Details == nil {
			res.Details = map[string]any{}
		}
		res.Details["tenant_id"] = tenantID
		return res
	})
}

func httpCheck(ctx context.Context, client *http.Client, url string, timeout time.Duration) model.CheckResult {
	if url == "" {
		return model.CheckResult{Status: model.StatusUnknown, Error: "endpoint not configured"}
	}
	if client == nil {
		client = http.DefaultClient
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hctx, http.MethodGet, url, nil)
	if err != nil {
		return model.CheckResult{Status: model.StatusUnknown, Error: fmt.Sprintf("build request: %v", err)}
	}
	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return model.CheckResult{Status: model.StatusUnhealthy, LatencyMs: latency, Error: fmt.Sprintf("request: %v", err)}
	}
	defer resp.Body.Close()

	details := map[string]any{"status_code": resp.StatusCode, "url": url}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.CheckResult{
			Status:    model.StatusUnhealthy,
			LatencyMs: latency,
			Details:   details,
			Error:     fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
	return model.CheckResult{Status: evaluate.EvaluateLatency(latency, 0, 0), LatencyMs: latency, Details: details}
}
