package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// HistoryRepo writes the append-only health check history used for trend
// queries. Writes are best-effort at the call site; callers log and swallow
// failures so history never blocks the check pipeline.
type HistoryRepo struct {
	db *Database
}

func NewHistoryRepo(db *Database) *HistoryRepo { return &HistoryRepo{db: db} }

func (r *HistoryRepo) AppendHistory(ctx context.Context, rec model.HealthCheckRecord) error {
	detailsJSON, _ := json.Marshal(rec.Details)
	const q = `
	INSERT INTO health_check_history (service, tenant_id, tier, status, latency_ms, details, error, checked_at, consecutive_failures)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, q,
		rec.Service, nullable(rec.TenantID), string(rec.Tier), string(rec.Status),
		rec.LatencyMs, string(detailsJSON), nullable(rec.Error), rec.CheckedAt, rec.ConsecutiveFailures)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// RecentHistory returns the latest records for one (service, tenant) pair,
// newest first.
func (r *HistoryRepo) RecentHistory(ctx context.Context, service, tenantID string, limit int) ([]model.HealthCheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
	SELECT service, COALESCE(tenant_id, ''), tier, status, latency_ms, details, COALESCE(error, ''), checked_at, consecutive_failures
	FROM health_check_history
	WHERE service = $1 AND tenant_id IS NOT DISTINCT FROM NULLIF($2, '')
	ORDER BY checked_at DESC
	LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, service, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer rows.Close()
	var out []model.HealthCheckRecord
	for rows.Next() {
		var (
			rec        model.HealthCheckRecord
			tier       string
			status     string
			detailsRaw []byte
		)
		if err := rows.Scan(&rec.Service, &rec.TenantID, &tier, &status, &rec.LatencyMs,
			&detailsRaw, &rec.Error, &rec.CheckedAt, &rec.ConsecutiveFailures); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Tier = model.ServiceTier(tier)
		rec.Status = model.HealthStatus(status)
		if len(detailsRaw) > 0 {
			_ = json.Unmarshal(detailsRaw, &rec.Details)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
