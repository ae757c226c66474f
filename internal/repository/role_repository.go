package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/bookshelf-auth/internal/model"
)

// RoleRepo reads the role/permission catalogue.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// PermissionsForRole lists the permissions granted to a role, ordered by id.
func (r *RoleRepo) PermissionsForRole(ctx context.Context, roleID uint64) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, p.name FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ? ORDER BY p.id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}
	return scanPermissions(rows)
}

// AllPermissions lists every permission in the system, ordered by id.
func (r *RoleRepo) AllPermissions(ctx context.Context) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name FROM permissions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("all permissions: %w", err)
	}
	return scanPermissions(rows)
}

func scanPermissions(rows *sql.Rows) ([]model.Permission, error) {
	defer rows.Close()
	out := []model.Permission{}
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
