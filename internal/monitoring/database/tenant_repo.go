package database

import (
	"context"
	"fmt"
)

// TenantRepo reads the active tenant directory owned by the surrounding
// platform. The monitoring core only ever needs the id list.
type TenantRepo struct {
	db *Database
}

func NewTenantRepo(db *Database) *TenantRepo { return &TenantRepo{db: db} }

// ActiveTenants returns the ids of tenants that tenant-scoped monitors fan
// out across.
func (r *TenantRepo) ActiveTenants(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM tenants WHERE status = 'active' ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("active tenants: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
