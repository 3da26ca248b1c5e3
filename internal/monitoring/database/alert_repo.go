package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// AlertRepo persists alert records. Alerts are append-then-mutate: created
// once per escalation, updated by acknowledge/resolve and delivery tracking,
// never deleted.
type AlertRepo struct {
	db *Database
}

func NewAlertRepo(db *Database) *AlertRepo { return &AlertRepo{db: db} }

const alertColumns = `id, severity, source, service, tenant_id, metric, current_value, threshold_value,
	title, message, metadata, status, created_at, acknowledged_at, acknowledged_by,
	resolved_at, resolved_by, resolve_notes, delivery_status`

func (r *AlertRepo) CreateAlert(ctx context.Context, a *model.Alert) error {
	metadataJSON, _ := json.Marshal(a.Metadata)
	deliveryJSON, _ := json.Marshal(a.DeliveryStatus)
	const q = `
	INSERT INTO alerts (id, severity, source, service, tenant_id, metric, current_value, threshold_value,
		title, message, metadata, status, created_at, delivery_status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13, $14::jsonb)`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, string(a.Severity), a.Source, a.Service, nullable(a.TenantID), nullable(a.Metric),
		a.CurrentValue, a.ThresholdValue, a.Title, a.Message, string(metadataJSON),
		string(a.Status), a.CreatedAt, string(deliveryJSON))
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// UpdateDeliveryStatus overwrites the per-channel delivery map of an alert.
func (r *AlertRepo) UpdateDeliveryStatus(ctx context.Context, id string, delivery map[model.ChannelType]model.DeliveryState) error {
	deliveryJSON, _ := json.Marshal(delivery)
	const q = `UPDATE alerts SET delivery_status = $2::jsonb WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, string(deliveryJSON)); err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	return nil
}

// Acknowledge transitions an open alert to acknowledged. Returns
// sql.ErrNoRows when the alert does not exist or is not open.
func (r *AlertRepo) Acknowledge(ctx context.Context, id, by string, at time.Time) error {
	const q = `UPDATE alerts SET status = 'acknowledged', acknowledged_at = $2, acknowledged_by = $3
	WHERE id = $1 AND status = 'open'`
	res, err := r.db.ExecContext(ctx, q, id, at, by)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Resolve transitions an open or acknowledged alert to resolved.
func (r *AlertRepo) Resolve(ctx context.Context, id, by, notes string, at time.Time) error {
	const q = `UPDATE alerts SET status = 'resolved', resolved_at = $2, resolved_by = $3, resolve_notes = $4
	WHERE id = $1 AND status IN ('open', 'acknowledged')`
	res, err := r.db.ExecContext(ctx, q, id, at, by, notes)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *AlertRepo) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		return scanAlert(rows)
	}
	return nil, sql.ErrNoRows
}

// ListAlerts returns alerts newest first, optionally filtered by status.
func (r *AlertRepo) ListAlerts(ctx context.Context, status model.AlertStatus, limit int) ([]*model.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		q := `SELECT ` + alertColumns + ` FROM alerts WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err = r.db.QueryContext(ctx, q, string(status), limit)
	} else {
		q := `SELECT ` + alertColumns + ` FROM alerts ORDER BY created_at DESC LIMIT $1`
		rows, err = r.db.QueryContext(ctx, q, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []*model.Alert
	for rows.Next() {
		a, serr := scanAlert(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(rows *sql.Rows) (*model.Alert, error) {
	var (
		a              model.Alert
		severity       string
		status         string
		tenantID       sql.NullString
		metric         sql.NullString
		metadataRaw    []byte
		deliveryRaw    []byte
		acknowledgedAt sql.NullTime
		acknowledgedBy sql.NullString
		resolvedAt     sql.NullTime
		resolvedBy     sql.NullString
		resolveNotes   sql.NullString
	)
	if err := rows.Scan(&a.ID, &severity, &a.Source, &a.Service, &tenantID, &metric,
		&a.CurrentValue, &a.ThresholdValue, &a.Title, &a.Message, &metadataRaw, &status,
		&a.CreatedAt, &acknowledgedAt, &acknowledgedBy, &resolvedAt, &resolvedBy,
		&resolveNotes, &deliveryRaw); err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	a.Severity = model.AlertSeverity(severity)
	a.Status = model.AlertStatus(status)
	a.TenantID = tenantID.String
	a.Metric = metric.String
	a.AcknowledgedBy = acknowledgedBy.String
	a.ResolvedBy = resolvedBy.String
	a.ResolveNotes = resolveNotes.String
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		a.AcknowledgedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &a.Metadata)
	}
	if len(deliveryRaw) > 0 {
		_ = json.Unmarshal(deliveryRaw, &a.DeliveryStatus)
	}
	return &a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
